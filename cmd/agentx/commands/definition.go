package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentx/agentx/internal/platform"
	"github.com/agentx/agentx/pkg/apitypes"
)

var definitionCmd = &cobra.Command{
	Use:   "definition",
	Short: "Manage Definitions",
}

var (
	defineSystemPrompt string
	defineDescription  string
)

var definitionRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a Definition, materializing its MetaImage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ax, err := platform.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer ax.Close()

		img, err := ax.Images.RegisterDefinition(ctx, apitypes.Definition{
			Name:         args[0],
			Description:  defineDescription,
			SystemPrompt: defineSystemPrompt,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(img)
	},
}

var definitionShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a Definition's MetaImage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ax, err := platform.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer ax.Close()

		img, err := ax.Images.GetMetaImage(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(img)
	},
}

func init() {
	definitionRegisterCmd.Flags().StringVar(&defineSystemPrompt, "system-prompt", "", "system prompt for the new Definition")
	definitionRegisterCmd.Flags().StringVar(&defineDescription, "description", "", "human-readable description")

	definitionCmd.AddCommand(definitionRegisterCmd)
	definitionCmd.AddCommand(definitionShowCmd)
}
