// Package security validates untrusted input before it reaches the download
// or filesystem layers: URL scheme/host/SSRF checks, job ID and filename
// safety, and path-traversal prevention. Ported from the original project's
// services/security.rs SecurityValidator.
package security

import (
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/job"
)

// Validator enforces the SSRF and path-safety rules around a configured
// set of allowed download domains.
type Validator struct {
	allowedDomains   []string
	maxURLLength     int
	maxFileSizeBytes int64
}

func New(allowedDomains []string, maxURLLength int, maxFileSizeBytes int64) *Validator {
	return &Validator{
		allowedDomains:   allowedDomains,
		maxURLLength:     maxURLLength,
		maxFileSizeBytes: maxFileSizeBytes,
	}
}

func (v *Validator) MaxFileSizeBytes() int64 { return v.maxFileSizeBytes }

// ValidateURL runs the full HTTPS/host/SSRF/domain-allowlist/pattern gauntlet
// required before a URL is handed to the download stage.
func (v *Validator) ValidateURL(raw string) (*url.URL, error) {
	if len(raw) > v.maxURLLength {
		return nil, apperror.Newf(apperror.Download, "URL too long: %d characters (max: %d)", len(raw), v.maxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperror.Newf(apperror.Download, "invalid URL format: %v", err)
	}

	if u.Scheme != "https" {
		return nil, apperror.New(apperror.Download, "only HTTPS URLs are allowed for security reasons")
	}

	host := u.Hostname()
	if host == "" {
		return nil, apperror.New(apperror.Download, "URL must have a valid host")
	}

	if err := v.validateHostSecurity(host); err != nil {
		return nil, err
	}

	if !v.isDomainAllowed(host) {
		return nil, apperror.Newf(apperror.Download, "domain %q is not in the allowed domains list: %s", host, strings.Join(v.allowedDomains, ", "))
	}

	if err := v.validateURLPatterns(u); err != nil {
		return nil, err
	}

	return u, nil
}

// ValidateInput checks a freeform string field for length and byte-level
// attacks (null bytes, control characters).
func (v *Validator) ValidateInput(input, fieldName string, maxLength int) error {
	if len(input) > maxLength {
		return apperror.Newf(apperror.BadRequest, "%s too long: %d characters (max: %d)", fieldName, len(input), maxLength)
	}
	if strings.ContainsRune(input, 0) {
		return apperror.Newf(apperror.BadRequest, "%s contains null bytes", fieldName)
	}
	for _, r := range input {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return apperror.Newf(apperror.BadRequest, "%s contains invalid control characters", fieldName)
		}
	}
	if fieldName == "job_id" {
		return v.ValidateJobID(input)
	}
	return nil
}

// ValidateJobID prevents path traversal through job identifiers.
func (v *Validator) ValidateJobID(id string) error {
	if strings.Contains(id, "..") || strings.ContainsAny(id, "/\\") {
		return apperror.New(apperror.BadRequest, "job ID contains invalid path characters")
	}
	if !job.ValidID(id) {
		return apperror.New(apperror.BadRequest, "job ID contains invalid characters")
	}
	if id == "" || len(id) > 100 {
		return apperror.New(apperror.BadRequest, "job ID must be between 1 and 100 characters")
	}
	return nil
}

// SafeJobFilePath builds "<baseDir>/<jobID>_<filename>" after validating
// that neither component can escape baseDir.
func (v *Validator) SafeJobFilePath(baseDir, jobID, filename string) (string, error) {
	if err := v.ValidateJobID(jobID); err != nil {
		return "", err
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") || strings.HasPrefix(filename, ".") {
		return "", apperror.New(apperror.BadRequest, "invalid filename")
	}

	safe := filepath.Join(baseDir, jobID+"_"+filename)

	absBase, err1 := filepath.Abs(baseDir)
	absPath, err2 := filepath.Abs(safe)
	if err1 == nil && err2 == nil {
		rel, err := filepath.Rel(absBase, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", apperror.New(apperror.BadRequest, "path traversal attempt detected")
		}
	}

	return safe, nil
}

func (v *Validator) validateHostSecurity(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		return validateIP(ip)
	}

	if host == "" {
		return apperror.New(apperror.Download, "empty host not allowed")
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".local") {
		return apperror.New(apperror.Download, "access to localhost/local domains is not allowed")
	}
	if strings.HasSuffix(lower, ".internal") || strings.HasSuffix(lower, ".intranet") || strings.Contains(lower, "internal.") {
		return apperror.New(apperror.Download, "access to internal domains is not allowed")
	}
	return nil
}

func validateIP(ip net.IP) error {
	if ip.IsLoopback() {
		return apperror.New(apperror.Download, "access to loopback addresses is not allowed")
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return apperror.New(apperror.Download, "access to link-local addresses is not allowed")
	}
	if ip.IsMulticast() {
		return apperror.New(apperror.Download, "access to multicast addresses is not allowed")
	}
	if ip.IsUnspecified() {
		return apperror.New(apperror.Download, "access to unspecified addresses is not allowed")
	}
	if ip4 := ip.To4(); ip4 != nil {
		if ip4.IsPrivate() {
			return apperror.New(apperror.Download, "access to private IP addresses is not allowed")
		}
		// CGN: 100.64.0.0/10
		if ip4[0] == 100 && (ip4[1]&0xC0) == 64 {
			return apperror.New(apperror.Download, "access to CGN addresses is not allowed")
		}
		return nil
	}
	// IPv6 unique local: fc00::/7
	if (ip[0] & 0xfe) == 0xfc {
		return apperror.New(apperror.Download, "access to unique local addresses is not allowed")
	}
	return nil
}

func (v *Validator) isDomainAllowed(host string) bool {
	for _, d := range v.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (v *Validator) validateURLPatterns(u *url.URL) error {
	s := u.String()
	if strings.Contains(s, "@") && !strings.Contains(s, "youtube.com") {
		return apperror.New(apperror.Download, "URLs with @ symbols are not allowed (potential redirect attack)")
	}
	if strings.Contains(s, "%2F") || strings.Contains(s, "%2f") || strings.Contains(s, "%5C") || strings.Contains(s, "%5c") {
		return apperror.New(apperror.Download, "URLs with encoded slashes are not allowed")
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if strings.Contains(seg, "..") {
			return apperror.New(apperror.Download, "URLs with path traversal patterns are not allowed")
		}
	}
	return nil
}
