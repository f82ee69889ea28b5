package config

import (
	"os"
	"regexp"
)

// CredentialSource says where a credential value was picked up.
type CredentialSource string

const (
	KeySourceEnv    CredentialSource = "env"
	KeySourceConfig CredentialSource = "config"
	KeySourceNone   CredentialSource = "none"
)

// KeyStatus is one credential as shown by `filingret status`.
type KeyStatus struct {
	Name    string           `json:"name"`
	Source  CredentialSource `json:"source"`
	IsSet   bool             `json:"is_set"`
	Masked  string           `json:"masked,omitempty"`
	Problem string           `json:"problem,omitempty"` // set value that the upstream will reject
}

var (
	// EDGAR blocks clients whose User-Agent carries no contact address.
	contactEmail = regexp.MustCompile(`[^@\s]+@[^@\s]+\.[a-zA-Z]{2,}`)
	fredKeyShape = regexp.MustCompile(`^[a-z0-9]{32}$`)
)

// CheckAPIKeys returns the status of every credential filingret uses. The
// FRED key is optional (the NY Fed serves policy rates without one); the SEC
// User-Agent always has a default but must name a reachable contact.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	fred := checkKey("FRED API Key", cfg.FRED.APIKey, EnvPrefix+"_FRED_API_KEY")
	if fred.IsSet && !fredKeyShape.MatchString(cfg.FRED.APIKey) {
		fred.Problem = "expected 32 lower-case alphanumeric characters"
	}

	sec := checkKey("SEC User-Agent", cfg.SEC.UserAgent, EnvPrefix+"_SEC_USER_AGENT")
	if sec.IsSet {
		// Not a secret.
		sec.Masked = cfg.SEC.UserAgent
		if !contactEmail.MatchString(cfg.SEC.UserAgent) {
			sec.Problem = "no contact e-mail; EDGAR will answer 403"
		}
	}
	return []KeyStatus{fred, sec}
}

func checkKey(name, value, envVar string) KeyStatus {
	if value == "" {
		return KeyStatus{Name: name, Source: KeySourceNone}
	}
	src := KeySourceConfig
	if os.Getenv(envVar) == value {
		src = KeySourceEnv
	}
	return KeyStatus{Name: name, Source: src, IsSet: true, Masked: maskKey(value)}
}

// maskKey keeps the first and last three characters of keys longer than 8.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
