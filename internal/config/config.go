package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds every input of one sync run. Inputs come from flags or, per
// the INPUT_* convention of action runners, from the environment.
type Config struct {
	SecretID         string
	SecretKey        string
	Region           string
	Bucket           string
	Prefix           string
	Artifacts        string
	DeleteRemote     bool
	FlushURL         string
	WorkingDirectory string
	Concurrency      int
}

// RegisterFlags declares the invocation surface on cmd.
func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().String("secret-id", "", "COS secret id")
	cmd.Flags().String("secret-key", "", "COS secret key")
	cmd.Flags().String("region", "", "COS region, e.g. ap-guangzhou")
	cmd.Flags().String("bucket", "", "COS bucket name")
	cmd.Flags().String("prefix", "", "Remote prefix to sync into")
	cmd.Flags().String("artifacts", "", "Artifact patterns, comma or newline separated")
	cmd.Flags().String("delete-remote", "", "Delete remote objects absent from the staged set")
	cmd.Flags().String("flush-url", "", "CDN path to purge after a successful sync")
	cmd.Flags().String("working-directory", "", "Directory patterns are resolved against")
	cmd.Flags().Int("concurrency", 8, "Number of concurrent uploads")
}

// Load reads the configuration from flags and INPUT_* environment variables,
// flags winning.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	for _, binding := range []struct{ key, flag string }{
		{"secret_id", "secret-id"},
		{"secret_key", "secret-key"},
		{"region", "region"},
		{"bucket", "bucket"},
		{"prefix", "prefix"},
		{"artifacts", "artifacts"},
		{"delete_remote", "delete-remote"},
		{"flush_url", "flush-url"},
		{"working_directory", "working-directory"},
		{"concurrency", "concurrency"},
	} {
		if err := v.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", binding.flag, err)
		}
	}
	v.SetEnvPrefix("INPUT")
	v.AutomaticEnv()

	deleteRemote, err := ParseBool(v.GetString("delete_remote"))
	if err != nil {
		return nil, fmt.Errorf("invalid boolean value for delete_remote: %q", v.GetString("delete_remote"))
	}

	cfg := &Config{
		SecretID:         v.GetString("secret_id"),
		SecretKey:        v.GetString("secret_key"),
		Region:           v.GetString("region"),
		Bucket:           v.GetString("bucket"),
		Prefix:           v.GetString("prefix"),
		Artifacts:        v.GetString("artifacts"),
		DeleteRemote:     deleteRemote,
		FlushURL:         v.GetString("flush_url"),
		WorkingDirectory: strings.TrimSpace(v.GetString("working_directory")),
		Concurrency:      v.GetInt("concurrency"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required inputs.
func (c *Config) Validate() error {
	required := []struct{ name, value string }{
		{"secret_id", c.SecretID},
		{"secret_key", c.SecretKey},
		{"region", c.Region},
		{"bucket", c.Bucket},
		{"prefix", c.Prefix},
		{"artifacts", c.Artifacts},
	}
	for _, input := range required {
		if input.value == "" {
			return fmt.Errorf("missing required input: %s", input.name)
		}
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

// ResolveWorkingDir resolves the working_directory input against root. It
// must exist, be a directory, and stay inside root.
func (c *Config) ResolveWorkingDir(root string) (string, error) {
	if c.WorkingDirectory == "" {
		return root, nil
	}

	dir := c.WorkingDirectory
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve working_directory: %w", err)
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("working_directory must be inside the workspace: %s", dir)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("working_directory does not exist or is not a directory: %s", dir)
	}
	return dir, nil
}

// ParseBool parses the boolean tokens the invocation surface accepts. The
// empty string is false so an unset optional input needs no special casing.
func ParseBool(val string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %q", val)
}
