package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nixxel-company-limited/escpos-bt-server/adapter"
	"github.com/nixxel-company-limited/escpos-bt-server/config"
	"github.com/nixxel-company-limited/escpos-bt-server/escpos"
	"github.com/nixxel-company-limited/escpos-bt-server/gateway"
	"github.com/nixxel-company-limited/escpos-bt-server/imaging"
	"github.com/nixxel-company-limited/escpos-bt-server/server"
	"github.com/nixxel-company-limited/escpos-bt-server/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(fs)
	selectAddr := fs.String("select", "", "save ADDR as the current printer and exit")
	clearSel := fs.Bool("clear", false, "forget the current printer and exit")
	status := fs.Bool("status", false, "query the printer's battery status and exit")
	printImage := fs.String("print-image", "", "print the image at PATH and exit")
	printText := fs.String("print-text", "", "print TEXT and exit")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal(err)
	}

	addresses, err := store.NewFileStore(cfg.StorePath)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *selectAddr != "":
		if err := addresses.Save(*selectAddr); err != nil {
			log.Fatal(err)
		}
		log.Printf("Selected printer %s (saved to %s)", *selectAddr, addresses.Path())
		return
	case *clearSel:
		if err := addresses.Clear(); err != nil {
			log.Fatal(err)
		}
		log.Println("Printer selection cleared")
		return
	}

	resolver := adapter.Resolver{Channel: cfg.RFCOMMChannel, BaudRate: cfg.BaudRate}
	gw := gateway.New(addresses, resolver)
	defer gw.Close()

	switch {
	case *status:
		if err := queryStatus(gw, cfg); err != nil {
			log.Fatal(err)
		}
		return
	case *printImage != "":
		if err := printImageFile(gw, cfg, *printImage); err != nil {
			log.Fatal(err)
		}
		return
	}

	svr := server.New(gw, cfg.ServerAddress,
		server.WithAckMode(cfg.AckMode),
		server.WithFeedLines(cfg.FeedLines),
	)

	if *printText != "" {
		svr.Submit(server.Event{Type: server.EventText, Data: *printText})
		svr.Stop()
		return
	}

	if err := serve(svr); err != nil {
		log.Fatal(err)
	}
}

func serve(svr *server.Server) error {
	log.Printf("Server will listen on: %s", svr.Address())
	if err := svr.StartAsync(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	return svr.Stop()
}

func queryStatus(gw *gateway.Gateway, cfg config.Config) error {
	st, err := gw.QueryStatus(gateway.StatusCommand, cfg.StatusTimeout)
	if err != nil {
		return err
	}

	fmt.Printf("Level:   %s\n", st.Level)
	if pct := st.Level.BatteryPercent(); pct >= 0 {
		fmt.Printf("Battery: ~%d%%\n", pct)
	} else {
		fmt.Println("Battery: unknown")
	}
	fmt.Printf("Raw:     %s\n", st.Hex())
	return nil
}

func printImageFile(gw *gateway.Gateway, cfg config.Config, path string) error {
	img, err := imaging.Load(path)
	if err != nil {
		return err
	}

	data := escpos.NewEncoder().
		Init().
		Align(escpos.AlignCenter).
		Image(imaging.FitWidth(img, cfg.PaperWidth)).
		Feed(cfg.FeedLines).
		Cut().
		Build()

	if err := gw.Print(data); err != nil {
		if errors.Is(err, gateway.ErrNoPrinterSelected) {
			return fmt.Errorf("%w: run with --select ADDR first", err)
		}
		return err
	}
	log.Printf("Printed %s (%d bytes)", path, len(data))
	return nil
}
