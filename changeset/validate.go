package changeset

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Validation rules are composable: each takes a changeset, appends zero or
// more field errors and returns the derived changeset. A format rule that
// finds no pending change for its field is a no-op; the required rules also
// consult the source data, so an update that leaves a populated field
// untouched keeps satisfying them.

var _emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateRequired adds a "can't be blank" error for every listed field that
// carries neither a non-blank pending change nor a non-blank value in the
// source data.
func ValidateRequired[T any](c Changeset[T], fields ...string) Changeset[T] {
	data := c.dataFields()
	for _, field := range fields {
		v, ok := c.GetChange(field)
		if !ok {
			v = data[field]
		}
		if isBlank(v) {
			c = c.AddError(field, "can't be blank")
		}
	}

	return c
}

// ValidateRequiredOneOf checks that at least one field of the group carries
// a non-blank change or source data value. When all are blank, the error is
// attached to every field in the group so each one can surface it.
func ValidateRequiredOneOf[T any](c Changeset[T], fields ...string) Changeset[T] {
	data := c.dataFields()
	for _, field := range fields {
		v, ok := c.GetChange(field)
		if !ok {
			v = data[field]
		}
		if !isBlank(v) {
			return c
		}
	}

	message := fmt.Sprintf("one of %s must be present", strings.Join(fields, ", "))
	for _, field := range fields {
		c = c.AddError(field, message)
	}

	return c
}

// ValidateEmail checks the shape of an email address change.
func ValidateEmail[T any](c Changeset[T], field string) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	s, _ := v.(string)
	if !_emailPattern.MatchString(s) {
		return c.AddError(field, "is not a valid email")
	}

	return c
}

// URIOpts configures ValidateURI.
type URIOpts struct {
	// Schemes is the scheme allow-list. Empty means http and https.
	Schemes []string
	// RequireTrailingSlash demands the path end with "/".
	RequireTrailingSlash bool
}

// ValidateURI checks that the pending change is an absolute URI with an
// allowed scheme and a host.
func ValidateURI[T any](c Changeset[T], field string, opts URIOpts) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return c.AddError(field, "is not a valid URI")
	}

	schemes := opts.Schemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}

	allowed := false
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return c.AddError(field, fmt.Sprintf("scheme must be one of %s", strings.Join(schemes, ", ")))
	}

	if opts.RequireTrailingSlash && !strings.HasSuffix(u.Path, "/") {
		return c.AddError(field, "must end with a trailing slash")
	}

	return c
}

// ValidateIP parses the pending change as an IP address and writes the
// normalized text form back as the change.
func ValidateIP[T any](c Changeset[T], field string) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	s, _ := v.(string)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return c.AddError(field, "is not a valid IP address")
	}

	return c.PutChange(field, addr.String())
}

// ValidateCIDR parses the pending change as a CIDR prefix, normalizes it to
// its masked canonical form and writes that back as the change.
func ValidateCIDR[T any](c Changeset[T], field string) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	s, _ := v.(string)
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return c.AddError(field, "is not a valid CIDR range")
	}

	return c.PutChange(field, prefix.Masked().String())
}

// ValidateNotOverlapping checks the pending CIDR change against a set of
// reserved prefixes. Run ValidateCIDR first so the change is normalized.
func ValidateNotOverlapping[T any](c Changeset[T], field string, prefixes []netip.Prefix) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	s, _ := v.(string)
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return c.AddError(field, "is not a valid CIDR range")
	}

	for _, reserved := range prefixes {
		if prefix.Overlaps(reserved) {
			return c.AddError(field, fmt.Sprintf("must not overlap with %s", reserved))
		}
	}

	return c
}

// ValidateHashMatch compares the plaintext pending change against a stored
// bcrypt hash. The comparison is constant-time; a mismatch reads the same as
// a malformed hash.
func ValidateHashMatch[T any](c Changeset[T], field string, storedHash []byte) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	s, _ := v.(string)
	if bcrypt.CompareHashAndPassword(storedHash, []byte(s)) != nil {
		return c.AddError(field, "does not match")
	}

	return c
}

// ValidateDateAfter checks that the pending date/datetime change is strictly
// greater than min. The change may be a time.Time or an RFC 3339 string.
func ValidateDateAfter[T any](c Changeset[T], field string, min time.Time) Changeset[T] {
	v, ok := c.GetChange(field)
	if !ok {
		return c
	}

	var (
		ts  time.Time
		err error
	)
	switch vt := v.(type) {
	case time.Time:
		ts = vt
	case string:
		ts, err = time.Parse(time.RFC3339, vt)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return c.AddError(field, "is not a valid datetime")
	}

	if !ts.After(min) {
		return c.AddError(field, fmt.Sprintf("must be greater than %s", min.Format(time.RFC3339)))
	}

	return c
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	return false
}
