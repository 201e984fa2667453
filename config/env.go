package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding job fields,
// e.g. GROUPCTL_PUBLISH_TARGET for publish.target.
const EnvPrefix = "GROUPCTL"

var envReplacer = strings.NewReplacer(".", "_")

// BindEnv makes v read overrides from the environment.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
}
