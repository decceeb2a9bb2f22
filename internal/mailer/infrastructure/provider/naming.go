package provider

import (
	"strings"

	"github.com/google/uuid"
)

const (
	instancePrefix = "molly-server"
	addressPrefix  = "molly-ip"

	// LabelService marks every resource this service creates.
	LabelService      = "service"
	LabelServiceValue = "mollyserver"
	LabelUser         = "user"
	LabelClass        = "servertype"

	maxResourceName = 63
)

// InstanceName builds molly-server-<user>-<8hex>, safe for GCP and Hetzner names.
func InstanceName(userID string) string {
	suffix := shortID()
	user := sanitize(userID)
	maxUser := maxResourceName - len(instancePrefix) - len(suffix) - 2
	if len(user) > maxUser {
		user = strings.TrimRight(user[:maxUser], "-")
	}
	if user == "" {
		return instancePrefix + "-" + suffix
	}
	return instancePrefix + "-" + user + "-" + suffix
}

// AddressName builds molly-ip-<8hex>.
func AddressName() string {
	return addressPrefix + "-" + shortID()
}

// Labels returns the label set attached to every instance.
func Labels(userID, class string) map[string]string {
	return map[string]string{
		LabelUser:    sanitize(userID),
		LabelClass:   class,
		LabelService: LabelServiceValue,
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// sanitize lowercases and keeps [a-z0-9-], collapsing everything else to '-'.
func sanitize(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxResourceName {
		out = strings.TrimRight(out[:maxResourceName], "-")
	}
	return out
}
