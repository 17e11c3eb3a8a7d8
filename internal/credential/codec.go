package credential

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/joho/godotenv"

	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

// Credential file keys. Per provider: {PREFIX}_API_KEY, {PREFIX}_MODEL and
// optionally {PREFIX}_BASE_URL.
const (
	keyOrder      = "PROVIDER_ORDER"
	keyActive     = "ACTIVE_PROVIDER"
	keyActiveName = "ACTIVE_PROVIDER_NAME"

	suffixAPIKey  = "_API_KEY"
	suffixModel   = "_MODEL"
	suffixBaseURL = "_BASE_URL"
)

// state is the in-memory content of a store.
type state struct {
	order  []provider.Kind
	creds  map[provider.Kind]Credential
	active provider.Kind
}

func emptyState() state {
	return state{creds: make(map[provider.Kind]Credential)}
}

func (st state) clone() state {
	return state{
		order:  slices.Clone(st.order),
		creds:  maps.Clone(st.creds),
		active: st.active,
	}
}

// encode renders st as sorted, always double-quoted KEY="value" lines.
// Equal states always produce identical bytes.
func encode(st state) ([]byte, error) {
	env := make(map[string]string, len(st.order)*3+3)
	names := make([]string, 0, len(st.order))
	for _, k := range st.order {
		c := st.creds[k]
		prefix := k.EnvPrefix()
		names = append(names, prefix)
		env[prefix+suffixAPIKey] = c.APIKey.Reveal()
		env[prefix+suffixModel] = c.Model
		if c.BaseURL != "" {
			env[prefix+suffixBaseURL] = c.BaseURL
		}
	}
	if len(names) > 0 {
		env[keyOrder] = strings.Join(names, ",")
	}
	if st.active.Valid() {
		env[keyActive] = st.active.EnvPrefix()
		env[keyActiveName] = st.active.String()
	}
	keys := slices.Sorted(maps.Keys(env))
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=\"%s\"\n", k, quoteEscaper.Replace(env[k]))
	}
	return buf.Bytes(), nil
}

// quoteEscaper mirrors the unescaping godotenv.Parse applies to
// double-quoted values. Values are never written bare: godotenv.Marshal
// would rewrite "0042" as 42.
var quoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	`"`, `\"`,
	`!`, `\!`,
	`$`, `\$`,
	"`", "\\`",
)

// decode parses a credential file. Parse failures are returned as errors;
// inconsistencies that can be repaired (unknown names, dangling active
// pointer, blank keys) are dropped and reported as warnings.
func decode(data []byte) (state, []string, error) {
	env, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return state{}, nil, err
	}
	st := emptyState()
	var warnings []string

	add := func(k provider.Kind) {
		if _, dup := st.creds[k]; dup {
			return
		}
		prefix := k.EnvPrefix()
		key := NewSecret(env[prefix+suffixAPIKey])
		if key.Empty() {
			return
		}
		d, _ := provider.Lookup(k)
		st.creds[k] = Credential{
			Provider: k,
			APIKey:   key,
			Model:    d.Model(env[prefix+suffixModel]),
			BaseURL:  strings.TrimSpace(env[prefix+suffixBaseURL]),
		}
		st.order = append(st.order, k)
	}

	if raw := strings.TrimSpace(env[keyOrder]); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			k, err := provider.ParseKind(name)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("ignoring %s entry: %v", keyOrder, err))
				continue
			}
			add(k)
		}
	}
	// Keys written by hand or by older versions have no order entry.
	for _, k := range provider.Kinds() {
		add(k)
	}

	if raw := strings.TrimSpace(env[keyActive]); raw != "" {
		k, err := provider.ParseKind(raw)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("ignoring %s: %v", keyActive, err))
		case st.creds[k].APIKey.Empty():
			warnings = append(warnings, fmt.Sprintf("ignoring %s: no api key saved for %s", keyActive, k))
		default:
			st.active = k
		}
	}
	return st, warnings, nil
}
