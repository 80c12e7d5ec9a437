/*

A CLI front end for the party combat meter core: wires the Packet
Source, Transport Reassembler, Message Classifier, Payload Decoder,
Event Semantics Layer, and the meter Engine together, either replaying
a capture file or capturing live from an interface, and prints periodic
JSON snapshots to stdout (spec.md §1 Non-goals: everything past this —
a real UI, persistence, clipboard integration — is an external
collaborator's job; this binary only demonstrates wiring the core).

*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/halvard/partymeter/capture"
	"github.com/halvard/partymeter/decode"
	"github.com/halvard/partymeter/event"
	"github.com/halvard/partymeter/meter"
	"github.com/halvard/partymeter/transport"
)

const (
	appName    = "partymeter"
	appVersion = "v0.1.0"
)

const (
	ExitCodeMissingArguments = 1
	ExitCodeCaptureFailed    = 2
	ExitCodeEngineFailed     = 3
)

// Flag variables, mirroring the teacher CLI's package-level flag.* vars.
var (
	version = flag.Bool("version", false, "print version info and exit")

	replayFile = flag.String("replay", "", "replay UDP traffic from a capture file instead of a live interface")
	iface      = flag.String("iface", "", "network interface to capture live from")
	bpfFilter  = flag.String("bpf", capture.RecommendedBPFFilter, "BPF filter for live capture")

	selfName = flag.String("self-name", "", "starting self player name")
	itemDB   = flag.String("itemdb", "", "path to the weapon-category lookup CSV")
	sinkDir  = flag.String("unknown-sink", "", "directory to dump unrecognized payloads into")

	mode          = flag.String("mode", "battle", "session mode: battle, zone, or manual")
	battleTimeout = flag.Duration("battle-timeout", 20*time.Second, "battle-mode idle timeout before a session closes")
	tickWindow    = flag.Duration("tick-window", 10*time.Second, "rolling DPS/HPS window")
	historySize   = flag.Int("history", 20, "number of archived sessions to retain")

	snapshotInterval = flag.Duration("snapshot-interval", 250*time.Millisecond, "how often to print a snapshot")
)

func parseMode(s string) (meter.Mode, bool) {
	switch s {
	case "battle":
		return meter.ModeBattle, true
	case "zone":
		return meter.ModeZone, true
	case "manual":
		return meter.ModeManual, true
	default:
		return 0, false
	}
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println(appName, "version:", appVersion)
		return
	}

	if *replayFile == "" && *iface == "" {
		printUsage()
		os.Exit(ExitCodeMissingArguments)
	}

	m, ok := parseMode(*mode)
	if !ok {
		fmt.Printf("invalid -mode %q\n", *mode)
		os.Exit(ExitCodeMissingArguments)
	}

	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	var src capture.Source
	var err error
	if *replayFile != "" {
		src, err = capture.NewFileSource(*replayFile)
	} else {
		src, err = capture.NewLiveSource(*iface, *bpfFilter)
	}
	if err != nil {
		log.Error("failed to open packet source", zap.Error(err))
		os.Exit(ExitCodeCaptureFailed)
	}
	defer src.Close()

	queue := capture.NewQueue(0)

	engine, err := meter.NewEngine(meter.Config{
		SelfName:      *selfName,
		Mode:          m,
		BattleTimeout: *battleTimeout,
		TickWindow:    *tickWindow,
		HistorySize:   *historySize,
		ItemDBPath:    *itemDB,
	}, queue.DropTotal)
	if err != nil {
		log.Error("failed to build engine", zap.Error(err))
		os.Exit(ExitCodeEngineFailed)
	}

	var sink *decode.UnknownSink
	if *sinkDir != "" {
		sink = decode.NewUnknownSink(*sinkDir)
	}

	reg := event.NewRegistry()
	defaultDialectCodes(reg)

	reassembler := transport.NewReassembler(log)
	defer reassembler.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go runCapture(ctx, src, queue, log)

	runPipeline(ctx, queue, reassembler, reg, engine, sink, log)
}

// runCapture is the capture thread (spec.md §5): it pulls packets from
// the source and pushes them onto the bounded queue until ctx is
// cancelled or the source is exhausted.
func runCapture(ctx context.Context, src capture.Source, queue *capture.Queue, log *zap.Logger) {
	for {
		pkt, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Info("packet source exhausted", zap.Error(err))
			}
			return
		}
		queue.Push(pkt)
	}
}

// runPipeline is the pipeline thread (spec.md §5): it drains the queue
// and runs stages 2-8 synchronously, with no lock needed since no other
// thread touches this state. The snapshot ticker is folded into the
// same select as the queue wake so a ticker firing during an idle
// capture still publishes a snapshot instead of waiting for a packet.
func runPipeline(ctx context.Context, queue *capture.Queue, reassembler *transport.Reassembler, reg *event.Registry, engine *meter.Engine, sink *decode.UnknownSink, log *zap.Logger) {
	ticker := time.NewTicker(*snapshotInterval)
	defer ticker.Stop()

	enc := json.NewEncoder(os.Stdout)

	for {
		for {
			pkt, ok := queue.TryPop()
			if !ok {
				break
			}
			processPacket(pkt, reassembler, reg, engine, sink, log)
		}

		select {
		case <-ctx.Done():
			engine.RequestSnapshot(time.Now())
			return
		case <-ticker.C:
			engine.Tick(time.Now())
			snap := engine.RequestSnapshot(time.Now())
			_ = enc.Encode(snap)
		case <-queue.Notify():
		}
	}
}

func processPacket(pkt capture.Packet, reassembler *transport.Reassembler, reg *event.Registry, engine *meter.Engine, sink *decode.UnknownSink, log *zap.Logger) {
	dg, skipped, err := transport.ParseDatagram(pkt.Payload)
	if err != nil {
		engine.NoteMalformed()
		log.Warn("malformed datagram", zap.Error(err))
		return
	}
	if skipped > 0 {
		log.Debug("dropped unknown command types", zap.Int("count", skipped))
	}

	flow := transport.NewFlowKey(pkt.Src, pkt.Dst)

	for _, cmd := range dg.Commands {
		res, ok, err := reassembler.Process(flow, pkt.TS, cmd)
		if err != nil {
			engine.NoteReassemblyFailed()
			log.Warn("reassembly failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		msg, cerr := decode.Classify(res.Body)
		if msg == nil {
			engine.NoteMalformed()
			if cerr != nil {
				log.Warn("malformed protocol header", zap.Error(cerr))
			}
			continue
		}
		msg.Channel = res.Channel
		msg.Reliable = res.Reliable
		msg.Seq = res.Seq

		if cerr != nil {
			// Unknown tag: partial params, dump the raw command body (spec §4.3, §7).
			engine.NoteUnknownTag()
			if sink != nil {
				_ = sink.Dump(msg.Kind.Name, msg.Code, pkt.TS, res.Body)
			}
		}

		ev, berr := reg.Build(msg.Kind, msg.Code, msg.Params)
		if berr != nil {
			log.Warn("failed to build event", zap.Error(berr), zap.Uint8("code", msg.Code))
			continue
		}
		if ev.Kind() == event.KindUnknown && sink != nil {
			_ = sink.Dump(msg.Kind.Name, msg.Code, pkt.TS, res.Body)
		}

		engine.ApplyEvent(ev, pkt.TS, pkt.Dst)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	name := os.Args[0]
	fmt.Printf("\t%s -replay capture.pcap\n", name)
	fmt.Printf("\t%s -iface eth0\n", name)
	fmt.Println("\tRun with '-h' to see a list of available flags.")
}
