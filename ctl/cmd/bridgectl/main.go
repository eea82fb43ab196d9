// Command bridgectl is the operator CLI for a running realtime bridge.
//
//	bridgectl stats -url http://localhost:4545/metrics
//	bridgectl token -sender ops -channels ops-room,alerts -ttl 1h
//	bridgectl tail  -url ws://localhost:4545 -channel orders -sender ops
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"

	"github.com/logista/realtime-bridge/ctl/internal/scrape"
	"github.com/logista/realtime-bridge/pkg/token"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "stats":
		err = runStats(ctx, os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "tail":
		err = runTail(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "bridgectl: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("bridgectl failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bridgectl <stats|token|tail> [flags]")
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	target := fs.String("url", "http://localhost:4545/metrics", "bridge metrics endpoint")
	fs.Parse(args) //nolint:errcheck

	st, err := scrape.New(*target).Scrape(ctx)
	if err != nil {
		return err
	}
	printStats(os.Stdout, st)
	return nil
}

func printStats(w io.Writer, st *scrape.Stats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "scraped at\t%s\n", st.ScrapedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "connections\t%.0f active\t%.0f total\n", st.ConnectionsActive, st.ConnectionsTotal)
	fmt.Fprintf(tw, "rooms\t%.0f\t%.0f evicted\n", st.Rooms, st.RoomsEvicted)
	for _, k := range sortedKeys(st.FramesReceived) {
		fmt.Fprintf(tw, "frames received\t%s\t%.0f\n", k, st.FramesReceived[k])
	}
	for _, k := range sortedKeys(st.FramesDropped) {
		fmt.Fprintf(tw, "frames dropped\t%s\t%.0f\n", k, st.FramesDropped[k])
	}
	fmt.Fprintf(tw, "deliveries failed\t%.0f\n", st.DeliveriesFailed)
	fmt.Fprintf(tw, "heartbeat terminations\t%.0f\n", st.HeartbeatTerminations)
	tw.Flush() //nolint:errcheck
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sender := fs.String("sender", "", "sender identity carried by the token (required)")
	channels := fs.String("channels", "", "comma-separated channels the token may join; empty allows any")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime; 0 for no expiry")
	issuer := fs.String("issuer", "", "iss claim")
	secretEnv := fs.String("secret-env", token.DefaultSecretEnv, "environment variable holding the HS256 secret")
	fs.Parse(args) //nolint:errcheck

	if *sender == "" {
		return errors.New("token: -sender is required")
	}
	secret := os.Getenv(*secretEnv)
	if secret == "" {
		return fmt.Errorf("token: $%s is empty", *secretEnv)
	}

	var allowed []string
	for _, c := range strings.Split(*channels, ",") {
		if c = strings.TrimSpace(c); c != "" {
			allowed = append(allowed, c)
		}
	}

	tok, err := token.Mint([]byte(secret), *issuer, *sender, allowed, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runTail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	base := fs.String("url", "ws://localhost:4545", "bridge WebSocket endpoint")
	channel := fs.String("channel", "", "channel to join; empty uses the bridge default")
	sender := fs.String("sender", "bridgectl", "sender identity")
	bearer := fs.String("token", "", "identity token for bridges running with auth")
	fs.Parse(args) //nolint:errcheck

	target, err := tailURL(*base, *channel, *sender, *bearer)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("tail: dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("tail: read: %w", err)
		}
		fmt.Println(string(data))
	}
}

// tailURL adds the identity query parameters to base. An empty channel is
// left out so the bridge applies its default.
func tailURL(base, channel, sender, tok string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("tail: parse url: %w", err)
	}
	q := u.Query()
	if channel != "" {
		q.Set("channel", channel)
	}
	if sender != "" {
		q.Set("sender", sender)
	}
	if tok != "" {
		q.Set("token", tok)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
