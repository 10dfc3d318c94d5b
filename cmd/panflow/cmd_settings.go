package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.panflow/settings.yaml.

Settings provide defaults for flags:
  - default_config:    Used when -c is not specified
  - device_type:       Device type override
  - panos_version:     PAN-OS version override
  - conflict_strategy: Default merge conflict strategy

Examples:
  panflow settings show
  panflow settings set config panorama.xml
  panflow settings set conflict rename
  panflow settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			t.Row(name, value)
		}

		printSetting("default_config", s.DefaultConfig)
		printSetting("device_type", s.DeviceType)
		printSetting("panos_version", s.Version)
		printSetting("conflict_strategy", s.ConflictStrategy)
		printSetting("output_dir", s.OutputDir)

		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  config       - Default configuration file (-c flag default)
  device-type  - Device type override (firewall or panorama)
  version      - Default PAN-OS version
  conflict     - Default merge conflict strategy
  output-dir   - Directory for transformed configurations

Examples:
  panflow settings set config panorama.xml
  panflow settings set device-type panorama
  panflow settings set conflict rename`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]
		value := args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "config", "default_config":
			s.SetDefaultConfig(value)
			fmt.Printf("Default configuration set to: %s\n", value)
		case "device-type", "device_type":
			s.SetDeviceType(value)
			fmt.Printf("Device type set to: %s\n", value)
		case "version", "panos_version":
			s.SetVersion(value)
			fmt.Printf("PAN-OS version set to: %s\n", value)
		case "conflict", "conflict_strategy":
			s.SetConflictStrategy(value)
			fmt.Printf("Conflict strategy set to: %s\n", value)
		case "output-dir", "output_dir":
			s.SetOutputDir(value)
			fmt.Printf("Output directory set to: %s\n", value)
		default:
			return fmt.Errorf("unknown setting: %s (valid: config, device-type, version, conflict, output-dir)", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}

		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]

		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		var value string
		switch setting {
		case "config", "default_config":
			value = s.DefaultConfig
		case "device-type", "device_type":
			value = s.DeviceType
		case "version", "panos_version":
			value = s.Version
		case "conflict", "conflict_strategy":
			value = s.ConflictStrategy
		case "output-dir", "output_dir":
			value = s.OutputDir
		default:
			return fmt.Errorf("unknown setting: %s (valid: config, device-type, version, conflict, output-dir)", setting)
		}

		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
