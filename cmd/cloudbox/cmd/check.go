package cmd

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/cloudbox/credentials"
	"github.com/jmcleod/cloudbox/filename"
	"github.com/jmcleod/cloudbox/internal/config"
)

// ---------------------------------------------------------------------------
// Check result types
// ---------------------------------------------------------------------------

type checkReport struct {
	Valid  bool          `json:"valid"`
	Checks []checkResult `json:"checks"`
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "warn"
	Detail string `json:"detail,omitempty"`
}

func (r *checkReport) add(name, status, detail string) {
	if status == "fail" {
		r.Valid = false
	}
	r.Checks = append(r.Checks, checkResult{Name: name, Status: status, Detail: detail})
}

var (
	checkFlags configFlags
	checkJSON  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration and storage directory without serving",
	Long: `Loads the configuration exactly as "server" would and reports problems:
invalid settings, development defaults left in place, an unwritable upload
directory, unreadable TLS files, and stored files that uploads could not
have produced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := runChecks(checkFlags.load(cmd))
		out := cmd.OutOrStdout()
		if checkJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printHumanReport(out, report)
		}
		if !report.Valid {
			return errors.New("configuration check failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkFlags.register(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output results as JSON")
}

// ---------------------------------------------------------------------------
// Core check logic
// ---------------------------------------------------------------------------

func runChecks(cfg *config.Config, loadErr error) checkReport {
	report := checkReport{Valid: true}

	// 1. Configuration loads and validates.
	if loadErr != nil {
		report.add("config", "fail", loadErr.Error())
		return report
	}
	report.add("config", "pass", "")

	// 2. Secret key.
	if cfg.SecretKey == defaultSecretKey {
		report.add("secret_key", "warn", "built-in development key in use; set "+config.EnvSecretKey)
	} else {
		report.add("secret_key", "pass", "")
	}

	// 3. Users hash cleanly, and none still use a shipped password.
	if _, err := credentials.New(cfg.Users); err != nil {
		report.add("users", "fail", err.Error())
	} else if shipped := shippedPasswords(cfg.Users); len(shipped) > 0 {
		report.add("users", "warn", "default password still set for: "+strings.Join(shipped, ", "))
	} else {
		report.add("users", "pass", fmt.Sprintf("%d user(s)", len(cfg.Users)))
	}

	// 4. Upload directory is writable.
	if err := probeWritable(cfg.UploadDir); err != nil {
		report.add("upload_dir", "fail", err.Error())
	} else {
		report.add("upload_dir", "pass", cfg.UploadDir)
	}

	// 5. Stored files outside the allow-list. They are still downloadable,
	// so this is a warning rather than a failure.
	if stray, err := unlistedFiles(cfg.UploadDir); err != nil {
		report.add("stored_files", "warn", err.Error())
	} else if len(stray) > 0 {
		report.add("stored_files", "warn", "served but not uploadable: "+strings.Join(stray, ", "))
	} else {
		report.add("stored_files", "pass", "")
	}

	// 6. TLS key pair.
	if cfg.TLSCert != "" {
		if _, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey); err != nil {
			report.add("tls", "fail", err.Error())
		} else {
			report.add("tls", "pass", "")
		}
	}

	return report
}

func shippedPasswords(users map[string]string) []string {
	var names []string
	for name, password := range config.Default().Users {
		if users[name] == password {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// probeWritable creates dir if needed and writes a throwaway file in it.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// unlistedFiles returns stored names whose extension is not accepted for
// upload.
func unlistedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var stray []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !filename.Allowed(e.Name()) {
			stray = append(stray, e.Name())
		}
	}
	return stray, nil
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func printHumanReport(w io.Writer, report checkReport) {
	failures, warnings := 0, 0
	for _, c := range report.Checks {
		tag := "[PASS]"
		switch c.Status {
		case "fail":
			tag = "[FAIL]"
			failures++
		case "warn":
			tag = "[WARN]"
			warnings++
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", tag, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "%s %s\n", tag, c.Name)
		}
	}
	fmt.Fprintln(w)
	if report.Valid {
		fmt.Fprintf(w, "Result: OK (%d warning(s))\n", warnings)
	} else {
		fmt.Fprintf(w, "Result: INVALID (%d error(s), %d warning(s))\n", failures, warnings)
	}
}
