package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/client"
)

// EnvPrefix prefixes the environment variables that back the global flags,
// e.g. EQUIPCTL_SERVER or EQUIPCTL_PASSWORD.
const EnvPrefix = "EQUIPCTL"

type globals struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

// Execute runs the equipctl command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the equipctl command tree reading from in and
// writing results to out and diagnostics to errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	g := &globals{v: viper.New(), in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "equipctl",
		Short: "Client for the chemical equipment dataset service",
		Long: `equipctl uploads equipment CSV files to the dataset service, shows the
summaries and rows of the retained datasets, downloads PDF reports and
renders charts. Run "equipctl shell" for an interactive view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.setupLogger()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("server", client.DefaultServer, "Base URL of the dataset service")
	flags.StringP("username", "u", "", "Username for basic authentication")
	flags.StringP("password", "p", "", "Password for basic authentication (prompted when empty)")
	flags.BoolP("verbose", "v", false, "Enable verbose (debug) logging")

	for _, name := range []string{"server", "username", "password", "verbose"} {
		_ = g.v.BindPFlag(name, flags.Lookup(name))
	}
	g.v.SetEnvPrefix(EnvPrefix)
	g.v.AutomaticEnv()

	root.AddCommand(
		newDatasetsCommand(g),
		newUploadCommand(g),
		newSummaryCommand(g),
		newRowsCommand(g),
		newShowCommand(g),
		newPDFCommand(g),
		newChartsCommand(g),
		newShellCommand(g),
		newHashPasswordCommand(g),
	)

	return root
}

func (g *globals) setupLogger() {
	level := slog.LevelInfo
	if g.v.GetBool("verbose") {
		level = slog.LevelDebug
	}

	g.logger = slog.New(slog.NewTextHandler(g.errOut, &slog.HandlerOptions{Level: level}))
}

// client builds an API client, prompting for missing credentials when stdin
// is a terminal.
func (g *globals) client() (*client.Client, error) {
	username := g.v.GetString("username")
	password := g.v.GetString("password")

	if username == "" {
		line, err := g.prompt("Username: ", false)
		if err != nil {
			return nil, err
		}
		username = line
	}
	if password == "" {
		line, err := g.prompt("Password: ", true)
		if err != nil {
			return nil, err
		}
		password = line
	}

	return client.New(g.v.GetString("server"), username, password, client.WithLogger(g.logger))
}

var errNoTerminal = errors.New("credentials are required: use --username/--password or " + EnvPrefix + "_USERNAME/" + EnvPrefix + "_PASSWORD")

func (g *globals) prompt(label string, secret bool) (string, error) {
	f, ok := g.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errNoTerminal
	}

	fmt.Fprint(g.errOut, label)
	if secret {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(g.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read username: %w", err)
	}
	return strings.TrimSpace(line), nil
}
