package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/config"
	"github.com/agentx/agentx/internal/platform"
	"github.com/agentx/agentx/pkg/apitypes"
)

var (
	runDefinition   string
	runSystemPrompt string
	runWorkspace    string
	runInteractive  bool
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run one turn (or an interactive REPL) against a Definition",
	Long: `run starts a fresh Container, materializes (or reuses) the
MetaImage for --definition, runs an Agent from it, and sends one message,
or, with --interactive, a REPL loop reading one message per line from
stdin until EOF.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runDefinition, "definition", "d", "", "Definition name to run (required)")
	runCmd.Flags().StringVar(&runSystemPrompt, "system-prompt", "", "system prompt used only if the Definition doesn't exist yet")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "container workspace root (default: under the data dir, named after the definition)")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "read one message per line from stdin instead of a single positional message")
	_ = runCmd.MarkFlagRequired("definition")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ax, err := platform.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("starting runtime: %w", err)
	}
	defer ax.Close()

	img, err := ax.Images.GetMetaImage(ctx, runDefinition)
	if apierror.Is(err, apierror.KindNotFound) {
		img, err = ax.Images.RegisterDefinition(ctx, apitypes.Definition{
			Name:         runDefinition,
			SystemPrompt: runSystemPrompt,
		})
	}
	if err != nil {
		return fmt.Errorf("resolving definition %q: %w", runDefinition, err)
	}

	workspace := runWorkspace
	if workspace == "" {
		workspace = filepath.Join(config.DefaultPaths().WorkspaceRoot(), runDefinition)
	}
	rec, err := ax.Containers.Create(ctx, workspace)
	if err != nil {
		return fmt.Errorf("creating container: %w", err)
	}

	handle, err := ax.Agents.Run(ctx, img.ImageID, rec.ContainerID, cfg)
	if err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}

	sessionImage := apitypes.Image{ImageID: img.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID}

	if runInteractive {
		return runREPL(ctx, ax, handle.SessionID, sessionImage)
	}

	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("no message given; pass one as an argument or use --interactive")
	}
	return sendAndPrint(ctx, ax, handle.SessionID, sessionImage, message)
}

func runREPL(ctx context.Context, ax *platform.AgentX, sessionID string, img apitypes.Image) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := sendAndPrint(ctx, ax, sessionID, img, line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
	return scanner.Err()
}

func sendAndPrint(ctx context.Context, ax *platform.AgentX, sessionID string, img apitypes.Image, message string) error {
	reply, err := ax.Sessions.Send(ctx, sessionID, apitypes.TextOnly(message), img, cfg)
	if err != nil {
		return err
	}
	fmt.Println(apitypes.ConcatText(reply.Content))
	return nil
}
