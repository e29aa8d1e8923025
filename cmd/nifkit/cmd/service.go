/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/config"
)

const serviceName = "nifkit.service"

// unitPath is where the systemd unit is installed.
var unitPath = "/etc/systemd/system/" + serviceName

// runCommand runs an external command with the caller's stdio.
var runCommand = func(command string, args ...string) error {
	c := exec.Command(command, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=nifkit API server
After=network-online.target
Wants=network-online.target

[Service]
User={{.User}}
Group={{.User}}
ExecStart={{.Binary}} serve --config {{.ConfigPath}}
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths={{.DataDir}}
ReadWritePaths={{.ConfigDir}}

[Install]
WantedBy=multi-user.target
`))

type unitParams struct {
	User       string
	Binary     string
	ConfigPath string
	ConfigDir  string
	DataDir    string
}

func renderUnit(p unitParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, p); err != nil {
		return nil, errors.Wrap(err, "render unit")
	}
	return buf.Bytes(), nil
}

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the nifkit API server as a systemd service",
	Long: `Manage 'nifkit serve' as a systemd service. The unit runs with a
restricted umask and may only write to its data and config directories.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

// installServiceCmd represents the service install command
var installServiceCmd = &cobra.Command{
	Use:   "install",
	Short: "Install nifkit as a systemd service",
	Long: `Install the systemd unit, creating a configuration first when none exists.

Examples:
  sudo nifkit service install
  sudo nifkit service install --data-dir /var/lib/nifkit --user nifkit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		user, _ := cmd.Flags().GetString("user")
		startNow, _ := cmd.Flags().GetBool("start")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if os.Geteuid() != 0 {
			return errors.New("service install requires root privileges")
		}

		cfg, err := ensureServiceConfig(configPath, dataDir)
		if err != nil {
			return err
		}
		binary, err := os.Executable()
		if err != nil {
			return errors.Wrap(err, "locate nifkit binary")
		}
		unit, err := renderUnit(unitParams{
			User:       user,
			Binary:     binary,
			ConfigPath: configPath,
			ConfigDir:  filepath.Dir(configPath),
			DataDir:    cfg.Storage.DataDir,
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(unitPath, unit, 0600); err != nil {
			return errors.Wrap(err, "write unit file")
		}

		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return errors.Wrap(err, "reload systemd")
		}
		if err := runCommand("systemctl", "enable", serviceName); err != nil {
			return errors.Wrap(err, "enable service")
		}
		if startNow {
			if err := runCommand("systemctl", "start", serviceName); err != nil {
				return errors.Wrap(err, "start service")
			}
		}
		success(cmd.OutOrStdout(), "Installed %s (config %s, data %s, %s)",
			serviceName, configPath, cfg.Storage.DataDir, cfg.Server.Address())
		return nil
	},
}

// ensureServiceConfig loads configPath, bootstrapping it when missing, and
// stores dataDir in it when given.
func ensureServiceConfig(configPath, dataDir string) (*config.Config, error) {
	if !config.ConfigExists(configPath) {
		return config.BootstrapConfig(configPath, dataDir)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" && dataDir != cfg.Storage.DataDir {
		cfg.Storage.DataDir = dataDir
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// uninstallServiceCmd represents the service uninstall command
var uninstallServiceCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the nifkit systemd service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return errors.New("service uninstall requires root privileges")
		}
		// Already stopped is fine.
		_ = runCommand("systemctl", "stop", serviceName)
		if err := runCommand("systemctl", "disable", serviceName); err != nil {
			warning(cmd.OutOrStdout(), "could not disable service: %v", err)
		}
		if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove unit file")
		}
		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return errors.Wrap(err, "reload systemd")
		}
		success(cmd.OutOrStdout(), "Uninstalled %s; configuration and data were kept", serviceName)
		return nil
	},
}

// systemctlCmd wraps a systemctl verb on the nifkit unit.
func systemctlCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.Wrapf(runCommand("systemctl", verb, serviceName), "systemctl %s", verb)
		},
	}
}

// logsCmd represents the service logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show service logs",
	Example: `  nifkit service logs
  nifkit service logs -f`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")
		return runCommand("journalctl", journalctlArgs(follow, lines)...)
	},
}

func journalctlArgs(follow bool, lines int) []string {
	args := []string{"-u", serviceName}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, "-n", strconv.Itoa(lines))
	}
	return args
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	serviceCmd.AddCommand(installServiceCmd)
	serviceCmd.AddCommand(uninstallServiceCmd)
	serviceCmd.AddCommand(systemctlCmd("start", "Start the service"))
	serviceCmd.AddCommand(systemctlCmd("stop", "Stop the service"))
	serviceCmd.AddCommand(systemctlCmd("restart", "Restart the service"))
	serviceCmd.AddCommand(systemctlCmd("status", "Show service status"))
	serviceCmd.AddCommand(logsCmd)

	installServiceCmd.Flags().String("user", "nifkit", "User to run the service as")
	installServiceCmd.Flags().Bool("start", true, "Start the service after installation")

	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
}
