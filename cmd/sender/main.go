// Command sender is the CLI entry point for the RUDP sender: it reads a
// file (or stdin), packetises it, and drives the sliding-window send
// loop against a receiver until every chunk is cumulatively acked.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	"rudp/internal/config"
	"rudp/internal/logger"
	"rudp/internal/sender"
)

func main() {
	address := flag.String("address", "127.0.0.1", "Receiver address or hostname")
	port := flag.Int("port", config.DefaultPort, "Receiver UDP port")
	file := flag.String("file", "", "File to transfer; reads stdin if empty")
	debug := flag.Bool("debug", false, "Enable debug logging")
	sack := flag.Bool("sack", false, "Enable selective acknowledgements")
	dropRate := flag.Float64("drop-rate", 0.0, "Simulate outbound loss at this rate, 0..1 (single-shot per seqno)")
	flag.Parse()

	if err := config.ValidateHost(*address); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := config.ValidatePort(strconv.Itoa(*port)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *dropRate != 0 {
		if err := config.ValidateDropRate(strconv.FormatFloat(*dropRate, 'f', -1, 64)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	level := logger.INFO
	if *debug {
		level = logger.DEBUG
	}
	log := logger.NewLogger(level, os.Stdout, "sender")

	input := os.Stdin
	if *file != "" {
		if err := config.ValidateFilePath(*file); err != nil {
			log.Fatal("invalid file path: %v", err)
		}
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("open %s: %v", *file, err)
		}
		defer f.Close()
		input = f
	}

	frames, err := sender.BuildFrames(input)
	if err != nil {
		log.Fatal("packetise input: %v", err)
	}
	log.Info("packetised %d frames sack=%t", len(frames), *sack)

	var drop *sender.DropPolicy
	if *dropRate > 0 {
		drop = sender.NewDropPolicy(*dropRate, rand.Int63())
	}

	s := sender.New(frames,
		sender.WithSack(*sack),
		sender.WithDropPolicy(drop),
		sender.WithLogger(log),
	)

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", *address, *port))
	if err != nil {
		log.Fatal("resolve %s:%d: %v", *address, *port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatal("dial %s:%d: %v", *address, *port, err)
	}
	defer conn.Close()
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)

	start := time.Now()
	if err := s.Run(conn); err != nil {
		log.Fatal("send loop failed: %v", err)
	}

	snap := s.Metrics().GetSnapshot()
	log.Info("transfer complete in %s: sent=%d bytes, retransmissions=%d, acks=%d, sacks=%d",
		time.Since(start), snap.BytesSent, snap.Retransmissions, snap.AcksReceived, snap.SacksReceived)
}
