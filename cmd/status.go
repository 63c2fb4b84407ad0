package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/watchpost/cli"
	"github.com/grovetools/watchpost/internal/pidfile"
	"github.com/grovetools/watchpost/internal/server"
	"github.com/grovetools/watchpost/internal/status"
	"github.com/grovetools/watchpost/pkg/paths"
	"github.com/grovetools/watchpost/version"
	"github.com/spf13/cobra"
)

const unixPrefix = "unix://"

// NewStatusCmd reports on a running station.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show station status",
		Long:  "Queries the running station for its session, open views and recognition worker.",
		Example: `# One-shot summary
watchpost status

# Print every change as it happens
watchpost status --follow`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	cmd.Flags().BoolP("follow", "f", false, "Stream status changes")
	cmd.Flags().String("addr", "", "Override server.addr")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	running, pid, err := pidfile.IsRunning(paths.PidFilePath())
	if err != nil {
		return fmt.Errorf("error checking status: %w", err)
	}
	if !running {
		fmt.Fprintln(out, cli.DefaultTheme.Muted.Render("Stopped"))
		return nil
	}

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if override, _ := cmd.Flags().GetString("addr"); override != "" {
		addr = override
	}
	client, base := statusClient(addr)

	if follow, _ := cmd.Flags().GetBool("follow"); follow {
		return followStatus(cmd.Context(), client, base, out)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("station (PID %d) is not answering on %s: %w", pid, addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status request failed: %s", resp.Status)
	}

	var st server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("unreadable status: %w", err)
	}
	if cli.GetOptions(cmd).JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(out, pid, st)
	return nil
}

// statusClient returns a client and base URL for a server.addr value.
func statusClient(addr string) (*http.Client, string) {
	if !strings.HasPrefix(addr, unixPrefix) {
		return &http.Client{}, "http://" + addr
	}
	socket := strings.TrimPrefix(addr, unixPrefix)
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}, "http://watchpost"
}

func printStatus(w io.Writer, pid int, st server.StatusResponse) {
	t := cli.DefaultTheme
	label := func(s string) string { return t.Muted.Render(fmt.Sprintf("%-10s", s)) }

	fmt.Fprintf(w, "%s %s\n", t.Header.Render("watchpost"), t.Muted.Render(version.GetInfo().Short()))
	fmt.Fprintf(w, "%s %s (PID %d, up %s)\n", label("Station"), t.Success.Render("running"), pid,
		time.Since(st.Station.StartedAt).Round(time.Second))

	session := st.Station.Session
	if st.Station.Role != "" {
		session = fmt.Sprintf("%s as %s (%s)", session, st.Station.Role, st.Station.Mode)
	}
	fmt.Fprintf(w, "%s %s\n", label("Session"), session)

	names := make([]string, 0, len(st.Station.Views))
	for name := range st.Station.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	views := make([]string, 0, len(names))
	for _, name := range names {
		views = append(views, fmt.Sprintf("%s=%s", name, st.Station.Views[name]))
	}
	if len(views) == 0 {
		views = append(views, "none")
	}
	fmt.Fprintf(w, "%s %s\n", label("Views"), strings.Join(views, " "))

	if st.Worker.Running {
		fmt.Fprintf(w, "%s %s (PID %d, %d messages, %.1f%% CPU, %d MiB)\n", label("Worker"),
			t.Success.Render("running"), st.Worker.PID, st.Worker.Messages,
			st.Worker.CPUPercent, st.Worker.RSSBytes/(1<<20))
	} else {
		fmt.Fprintf(w, "%s %s\n", label("Worker"), t.Muted.Render("stopped"))
	}
	if st.Station.CameraPanel != "" {
		fmt.Fprintf(w, "%s %s\n", label("Camera"), st.Station.CameraPanel)
	}

	weapons := t.Warning.Render("off")
	if st.Station.DetectWeapons {
		weapons = t.Success.Render("on")
	}
	fmt.Fprintf(w, "%s %s\n", label("Weapons"), weapons)
}

// followStatus prints one line per server-sent status update.
func followStatus(ctx context.Context, client *http.Client, base string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/stream", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to status stream: %w", err)
	}
	defer resp.Body.Close()

	t := cli.DefaultTheme
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var update status.Update
		if err := json.Unmarshal([]byte(data), &update); err != nil {
			continue
		}
		kinds := make([]string, len(update.Types))
		for i, k := range update.Types {
			kinds[i] = string(k)
		}
		snap := update.Snapshot
		fmt.Fprintf(w, "%s %s session=%s worker=%t views=%d\n",
			time.Now().Format("15:04:05"),
			t.Accent.Render(strings.Join(kinds, ",")),
			snap.Session, snap.WorkerRunning, len(snap.Views))
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
