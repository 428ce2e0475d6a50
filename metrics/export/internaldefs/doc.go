// Package internaldefs holds the metric names, help strings and bucket
// bounds shared by the exporters.
//
// Both the Prometheus and OTel exporters read these tables so a renamed
// metric changes in every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
