// Command transcript-tail prints finalized interpreter entries as they are published to Kafka.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"live-interpreter-service/internal/events"
	"live-interpreter-service/internal/observability/logging"
)

var (
	brokers   string
	topic     string
	partition int
	since     time.Duration
	session   string
	raw       bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "transcript-tail",
	Short: "Tail finalized bilingual transcript entries from Kafka",
	Long: `transcript-tail reads the final-entry topic written by the live interpreter
service and prints one line per entry.

Examples:
  transcript-tail --brokers localhost:9092
  transcript-tail --since 10m --session 3f2c9a4e-...
  transcript-tail --raw | jq .entry.translatedText`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&brokers, "brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "Kafka brokers (comma-separated)")
	f.StringVar(&topic, "topic", envOr("KAFKA_TOPIC_FINAL", "interpreter.transcript.final"), "final entry topic")
	f.IntVar(&partition, "partition", 0, "partition to read")
	f.DurationVar(&since, "since", time.Hour, "start this far back from now")
	f.StringVar(&session, "session", "", "only print entries from this session")
	f.BoolVar(&raw, "raw", false, "print the raw JSON payload")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})
	log := logging.WithComponent("transcript-tail")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Partition reader without a consumer group so several tails can run side by side.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   splitBrokers(brokers),
		Topic:     topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if since > 0 {
		if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
			return fmt.Errorf("seek: %w", err)
		}
	}

	log.Info().Str("brokers", brokers).Str("topic", topic).Dur("since", since).Msg("Tailing transcript entries")

	out := cmd.OutOrStdout()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := printMessage(out, msg.Value); err != nil {
			log.Debug().Err(err).Int64("offset", msg.Offset).Msg("Skipped message")
		}
	}
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func printMessage(w io.Writer, payload []byte) error {
	var ev events.FinalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if session != "" && ev.SessionID != session {
		return nil
	}
	if raw {
		_, err := fmt.Fprintln(w, string(payload))
		return err
	}
	_, err := fmt.Fprintln(w, formatEntry(ev))
	return err
}

func formatEntry(ev events.FinalEvent) string {
	e := ev.Entry
	line := fmt.Sprintf("%s [%-8s] %s", e.Timestamp.Local().Format("15:04:05"), e.Speaker, e.OriginalText)
	if e.TranslatedText != "" {
		line += "\n" + strings.Repeat(" ", 20) + "→ " + e.TranslatedText
	}
	return line
}
