// Command horusctl is a small read-only introspection CLI over the
// shared-memory layout a horus process leaves on disk: topics,
// heartbeats, and the cross-process log ring. It writes no records,
// topics, or heartbeats itself; tail-logs does create the log ring file
// if it is absent, and topics --watch creates the root directories.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"github.com/horus-robotics/horus-go/logring"
	"github.com/horus-robotics/horus-go/metadata"
	"github.com/horus-robotics/horus-go/node"
	"github.com/horus-robotics/horus-go/platform"
)

func main() {
	_ = godotenv.Load() // best-effort; no .env in prod deployments

	configFlag := flag.String("config", "", "path to config.toml (overrides HORUS_CONFIG)")
	topicFlag := flag.String("topic", "", "restrict output to a single topic/node name")
	rootFlag := flag.String("root", "", "override the HORUS shared-memory root directory")
	watchFlag := flag.Bool("watch", false, "for 'topics': keep watching for changes")
	flag.Parse()

	if *rootFlag != "" {
		os.Setenv("HORUS_ROOT", *rootFlag)
	}
	if *configFlag != "" {
		os.Setenv("HORUS_CONFIG", *configFlag)
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("horusctl: expected a subcommand: tail-logs | topics | heartbeats")
	}

	var err error
	switch args[0] {
	case "tail-logs":
		err = cmdTailLogs(*topicFlag)
	case "topics":
		err = cmdTopics(*watchFlag)
	case "heartbeats":
		err = cmdHeartbeats(*topicFlag)
	default:
		log.Fatalf("horusctl: unknown subcommand %q", args[0])
	}
	if err != nil {
		log.Fatalf("horusctl: %v", err)
	}
}

func cmdTailLogs(nodeName string) error {
	ring, err := logring.Global()
	if err != nil {
		return fmt.Errorf("open log ring: %w", err)
	}
	defer ring.Close()

	var records []logring.Record
	if nodeName != "" {
		records = ring.ForNode(nodeName)
	} else {
		records = ring.ReadAll()
	}
	for _, r := range records {
		fmt.Printf("%s [%s] %s: %s\n", r.Timestamp, r.Kind, r.NodeName, r.Message)
	}
	return nil
}

func cmdHeartbeats(nodeName string) error {
	if nodeName != "" {
		return printHeartbeat(nodeName)
	}

	entries, err := os.ReadDir(platform.HeartbeatsDir())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no heartbeats recorded yet")
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := printHeartbeat(e.Name()); err != nil {
			fmt.Fprintf(os.Stderr, "horusctl: %s: %v\n", e.Name(), err)
		}
	}
	return nil
}

func printHeartbeat(name string) error {
	state, ts, lastTick, summary, err := node.ReadHeartbeat(name)
	if err != nil {
		return err
	}
	stale := time.Since(ts) > 3*time.Second
	fmt.Printf("%-20s state=%d age=%s tick=%s stale=%v topics=%q\n",
		name, state, time.Since(ts).Round(time.Millisecond), lastTick, stale, summary)
	return nil
}

func cmdTopics(watch bool) error {
	print := func() error {
		topics, err := metadata.List()
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			fmt.Println("no topics registered")
			return nil
		}
		for _, t := range topics {
			m, err := metadata.Read(t)
			if err != nil {
				fmt.Fprintf(os.Stderr, "horusctl: %s: %v\n", t, err)
				continue
			}
			fmt.Printf("%-30s slots=%d slot_size=%d msg_kind=%d pid=%d\n",
				m.Topic, m.SlotCount, m.SlotSize, m.MsgKind, m.ProducerPID)
		}
		return nil
	}

	if err := print(); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch topics: %w", err)
	}
	defer w.Close()

	if err := platform.EnsureDirs(); err != nil {
		return err
	}
	if err := w.Add(platform.PubsubMetadataDir()); err != nil {
		return fmt.Errorf("watch %q: %w", platform.PubsubMetadataDir(), err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Write) != 0 {
				fmt.Println("---")
				if err := print(); err != nil {
					fmt.Fprintf(os.Stderr, "horusctl: %v\n", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "horusctl: watch error: %v\n", err)
		}
	}
}
