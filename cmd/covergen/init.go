package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/covergen/internal/adapter"
	"github.com/mmcdole/covergen/internal/adapter/source"
)

func newInitCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Add a server to the configuration interactively",
		Long: `Asks for a server URL, detects whether it runs Emby or Jellyfin, asks for
an API key and writes the server into the config file. Running it again
with the same name replaces that server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := adapter.LoadConfig(root.configPath)
			if err != nil {
				if root.configPath == "" || !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				cfg = adapter.DefaultConfig()
			}

			out := cmd.OutOrStdout()
			reader := bufio.NewReader(cmd.InOrStdin())

			fmt.Fprintln(out)
			fmt.Fprintln(out, TitleStyle.Render("Covergen setup"))
			fmt.Fprintln(out)

			// Loop until we get a reachable server URL
			var (
				serverURL string
				info      source.ServerInfo
			)
			for {
				serverURL, err = prompt(reader, out, "Server URL (e.g., http://192.168.1.100:8096): ")
				if err != nil {
					return err
				}
				if serverURL == "" {
					fmt.Fprintln(out, "Server URL cannot be empty. Please try again.")
					continue
				}
				info, err = detectWithSpinner(cmd.Context(), out, serverURL)
				if err != nil {
					fmt.Fprintf(out, "✗ Could not detect server type: %v\n", err)
					fmt.Fprintln(out, "Please check the URL and try again.")
					continue
				}
				break
			}
			fmt.Fprintf(out, "✓ Found %s %s (%s)\n\n", info.Type, info.Version, info.Name)

			name, err := prompt(reader, out, fmt.Sprintf("Name for this server [%s]: ", defaultServerName(info)))
			if err != nil {
				return err
			}
			if name == "" {
				name = defaultServerName(info)
			}

			apiKey, err := promptSecret(reader, out, "API key: ")
			if err != nil {
				return err
			}
			userID, err := prompt(reader, out, "User id (optional): ")
			if err != nil {
				return err
			}

			server := adapter.ServerConfig{
				Name:   name,
				Type:   info.Type,
				URL:    strings.TrimRight(serverURL, "/"),
				APIKey: apiKey,
				UserID: userID,
			}
			cfg.Servers = upsertServer(cfg.Servers, server)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			path, err := adapter.SaveConfig(cfg, root.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nSaved %s to %s\n", name, path)
			fmt.Fprintln(out, DimStyle.Render("Run 'covergen libraries' to check the connection."))
			return nil
		},
	}
}

// prompt reads one trimmed line
func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret hides the input when stdin is a terminal
func promptSecret(r *bufio.Reader, w io.Writer, label string) (string, error) {
	if !isTerminal(os.Stdin) {
		return prompt(r, w, label)
	}
	fmt.Fprint(w, label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w) // Add newline after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// detectWithSpinner probes the server while animating a spinner
func detectWithSpinner(ctx context.Context, w io.Writer, serverURL string) (source.ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	type result struct {
		info source.ServerInfo
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		info, err := source.DetectServerType(ctx, serverURL)
		resultCh <- result{info, err}
	}()

	frame := 0
	fmt.Fprintf(w, "\r%s Detecting server type...", SpinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Fprint(w, clearSpinnerLine)
			return res.info, res.err
		case <-ticker.C:
			frame = (frame + 1) % len(SpinnerFrames)
			fmt.Fprintf(w, "\r%s Detecting server type...", SpinnerFrames[frame])
		}
	}
}

// defaultServerName derives a short name from the detected server
func defaultServerName(info source.ServerInfo) string {
	name := strings.ToLower(strings.Join(strings.Fields(info.Name), "-"))
	if name == "" {
		return string(info.Type)
	}
	return name
}

// upsertServer replaces the server with the same name or appends it
func upsertServer(servers []adapter.ServerConfig, s adapter.ServerConfig) []adapter.ServerConfig {
	for i := range servers {
		if servers[i].Name == s.Name {
			servers[i] = s
			return servers
		}
	}
	return append(servers, s)
}
