package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
)

// NewAddCmd creates the add command
func NewAddCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [project-id]",
		Short: "Create a new project",
		Long: `Clones the Supabase repository into a new project directory, generates secrets,
allocates a block of host ports and registers the project.

Without an argument the project id is prompted for.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				var err error
				id, err = readProjectID(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			return withApp(cmd, flags, func(a *app) error {
				return runAdd(cmd, a, id)
			})
		},
	}

	return cmd
}

func runAdd(cmd *cobra.Command, a *app, id string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "➕ Adding project %s\n", bold(id))

	result, err := a.ctrl.Add(cmd.Context(), id)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(out, "%s %s\n", yellow("Warning:"), w)
	}

	p := result.Project
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s Project %s created\n", green("✅"), bold(p.ID))
	fmt.Fprintf(out, "   Directory: %s\n", p.Directory)
	fmt.Fprintf(out, "   API port:  %d\n", p.Ports.API)
	fmt.Fprintf(out, "   DB port:   %d\n", p.Ports.DB)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "🔑 JWT secret: %s\n", result.JWTSecret)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Generate ANON_KEY and SERVICE_ROLE_KEY signed with the JWT secret above")
	fmt.Fprintf(out, "     and set them in %s\n", a.ctrl.EnvPath(p.Directory))
	fmt.Fprintf(out, "  2. Run: supamulti start %s\n", p.ID)

	return nil
}

// readProjectID asks for a project id. When in is not a terminal the id is
// read as a single line without a prompt.
func readProjectID(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Project id: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read project id: %w", err)
	}

	id := strings.TrimSpace(line)
	if id == "" {
		return "", &usageError{fmt.Errorf("%w: no project id given", lifecycle.ErrInvalidProjectID)}
	}
	return id, nil
}
