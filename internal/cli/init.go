package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/graphcfg"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a starter graph and example scenario",
	Long: `Creates the config directory with a commented starter graph and one
scenario file that exercises it.

Writes to ~/.grantpath/ and never overwrites without --force.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	configDir := filepath.Join(home, ".grantpath")

	var created []string

	graphPath := filepath.Join(configDir, "graph.yaml")
	if wrote, err := writeIfMissing(graphPath, graphcfg.DefaultGraphYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, graphPath)
	}

	scenarioPath := filepath.Join(configDir, "scenarios", "example.yaml")
	if wrote, err := writeIfMissing(scenarioPath, exampleScenarioYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, scenarioPath)
	}

	fmt.Println("grantpath init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Try a decision:")
	fmt.Println("  grantpath check admin --set passphrase=opensesame")
	fmt.Println()
	fmt.Println("See why it went that way:")
	fmt.Println("  grantpath explain admin --set passphrase=opensesame")
	fmt.Println()
	fmt.Println("Run the example scenario:")
	fmt.Printf("  grantpath test --scenario %s\n", scenarioPath)

	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// exampleScenarioYAML asserts the starter graph's behavior.
func exampleScenarioYAML() string {
	return `# Scenario for the starter graph. Run with: grantpath test --scenario <this file>
name: starter graph
cases:
  - target: admin
    context: {passphrase: opensesame}
    expect: grant
    expect_fields:
      fields: [title, body]

  - target: secret
    expect: deny
`
}
