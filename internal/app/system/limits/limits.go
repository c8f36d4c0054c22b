// internal/app/system/limits/limits.go
package limits

// Request body size limits. These prevent memory exhaustion from
// oversized requests.
const (
	// MaxJSONBodySize is the maximum size for admin API request bodies.
	MaxJSONBodySize = 1 << 20 // 1 MB

	// MaxCSPReportSize caps a browser violation report; real reports
	// are well under 4 KiB.
	MaxCSPReportSize = 16 << 10
)
