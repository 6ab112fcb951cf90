package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"orderhub/internal/order"
	"orderhub/internal/payment"
	"orderhub/internal/syncagent"
	apperrors "orderhub/internal/xpkg/errors"
	"orderhub/internal/xpkg/logger"
)

type service struct {
	name    string
	execute func(ctx context.Context, mylog logger.Logger, args []string) error
}

var services = map[string]service{
	"order-service":    {name: "order-service", execute: order.Execute},
	"os":               {name: "order-service", execute: order.Execute},
	"sync-agent":       {name: "sync-agent", execute: syncagent.Execute},
	"sa":               {name: "sync-agent", execute: syncagent.Execute},
	"payment-consumer": {name: "payment-consumer", execute: payment.Execute},
	"pc":               {name: "payment-consumer", execute: payment.Execute},
}

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "INFO"
	}
	mylogger, err := logger.New(level)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}

	// Global flags for selecting the service mode
	fs := flag.NewFlagSet("main", flag.ExitOnError)
	mode := fs.String("mode", "", "service to run: order-service | sync-agent | payment-consumer")

	// --mode is pulled out of the arguments; everything else goes to the service
	args := os.Args[1:]
	var modeArgs, remainingArgs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--mode=") || strings.HasPrefix(arg, "-mode="):
			modeArgs = append(modeArgs, arg)
		case (arg == "--mode" || arg == "-mode") && i+1 < len(args):
			modeArgs = append(modeArgs, arg, args[i+1])
			i++
		default:
			remainingArgs = append(remainingArgs, arg)
		}
	}
	if err := fs.Parse(modeArgs); err != nil {
		mylogger.Action("orderhub_failed").Error("Failed to parse flags", err)
		help(fs)
		os.Exit(1)
	}

	if *mode == "" {
		mylogger.Action("orderhub_failed").Error("Failed to start orderhub", apperrors.ErrModeFlag)
		help(fs)
		os.Exit(1)
	}

	svc, ok := services[*mode]
	if !ok {
		mylogger.Action("orderhub_failed").Error("Failed to start orderhub", apperrors.ErrUnknownService)
		help(fs)
		os.Exit(1)
	}

	l := mylogger.With("service", svc.name)
	l.Action(actionName(svc.name, "started")).Info("Successfully started")
	if err := svc.execute(context.Background(), l, remainingArgs); err != nil {
		if errors.Is(err, apperrors.ErrHelp) {
			return
		}
		l.Action(actionName(svc.name, "failed")).Error("Error in "+svc.name, err)
		log.Fatalf("failed to execute %s: %s", svc.name, err)
	}
	l.Action(actionName(svc.name, "completed")).Info("Successfully completed")
}

func actionName(service, event string) string {
	return strings.ReplaceAll(service, "-", "_") + "_" + event
}

func help(fs *flag.FlagSet) {
	fmt.Println("\nUsage:")
	fs.PrintDefaults()
	fmt.Println("\nExample:")
	fmt.Println("  ./orderhub --mode=order-service --port=3000 --payments")
	fmt.Println("  ./orderhub --mode=sync-agent --scope=outlet --id=outlet-1 --board")
	fmt.Println("  ./orderhub --mode=payment-consumer --workers=4")
}
