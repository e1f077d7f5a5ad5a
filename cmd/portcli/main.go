package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Station-Manager/serialport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portcli",
		Short:         "Inspect and exercise serial ports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("device", "/dev/ttyUSB0", "serial device path")
	root.PersistentFlags().Int("baud", 9600, "baud rate")
	root.PersistentFlags().Int("databits", 8, "data bits (5-8)")
	root.PersistentFlags().String("parity", "N", "parity (N,E,O,M,S)")
	root.PersistentFlags().String("stopbits", "1", "stop bits (1, 1.5 or 2)")
	root.PersistentFlags().Duration("read-timeout", 0, "binding read timeout (0 = blocking)")
	root.PersistentFlags().Bool("verbose", false, "debug logging")

	_ = viper.BindPFlags(root.PersistentFlags())
	viper.SetEnvPrefix("PORTCLI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(newListCmd(), newMonitorCmd(), newWriteCmd())
	return root
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func settingsFromFlags(logger *zerolog.Logger) (*serialport.Settings, error) {
	s := serialport.DefaultSettings()
	s.BaudRate = serialport.BaudRate(viper.GetInt("baud"))
	s.DataBits = serialport.DataBits(viper.GetInt("databits"))
	s.ReadTimeout = viper.GetDuration("read-timeout")
	s.AutoOpen = false
	s.Logger = logger

	switch strings.ToUpper(viper.GetString("parity")) {
	case "N":
		s.Parity = serialport.ParityNone
	case "E":
		s.Parity = serialport.ParityEven
	case "O":
		s.Parity = serialport.ParityOdd
	case "M":
		s.Parity = serialport.ParityMark
	case "S":
		s.Parity = serialport.ParitySpace
	default:
		return nil, fmt.Errorf("unsupported parity %q (use N,E,O,M,S)", viper.GetString("parity"))
	}

	switch viper.GetString("stopbits") {
	case "1":
		s.StopBits = serialport.StopBits1
	case "1.5":
		s.StopBits = serialport.StopBits1Half
	case "2":
		s.StopBits = serialport.StopBits2
	default:
		return nil, fmt.Errorf("unsupported stopbits %q (use 1, 1.5 or 2)", viper.GetString("stopbits"))
	}

	return &s, nil
}

func openPort(logger zerolog.Logger) (*serialport.Port, error) {
	settings, err := settingsFromFlags(&logger)
	if err != nil {
		return nil, err
	}

	port, err := serialport.New(serialport.NewBugstBinding(), viper.GetString("device"), settings, nil)
	if err != nil {
		return nil, err
	}

	opened := make(chan error, 1)
	port.Open(func(err error) { opened <- err })
	if err := <-opened; err != nil {
		return nil, err
	}
	return port, nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available serial devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialport.List(serialport.NewBugstBinding())
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(os.Stderr, "no serial devices found")
				return nil
			}
			for _, p := range ports {
				fmt.Println(p)
			}
			return nil
		},
	}
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print incoming bytes until interrupted or disconnected",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			port, err := openPort(logger)
			if err != nil {
				return err
			}

			gone := make(chan struct{})
			port.OnData(func(chunk []byte) {
				os.Stdout.Write(chunk)
			})
			port.OnError(func(err error) {
				logger.Error().Err(err).Msg("port error")
			})
			port.OnDisconnect(func() {
				logger.Warn().Msg("device disconnected")
			})
			port.OnClose(func() {
				close(gone)
			})

			logger.Info().Str("device", port.Path()).Int("baud", port.BaudRate().Int()).Msg("monitoring")

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)

			select {
			case <-interrupt:
				closed := make(chan error, 1)
				port.Close(func(err error) { closed <- err })
				return <-closed
			case <-gone:
				return nil
			}
		},
	}
}

func newWriteCmd() *cobra.Command {
	var drain bool

	cmd := &cobra.Command{
		Use:   "write <payload>...",
		Short: "Write payloads to the device as one coalesced write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			port, err := openPort(logger)
			if err != nil {
				return err
			}

			// Cork so multiple payloads leave as a single transport
			// write.
			results := make(chan error, len(args))
			port.Cork()
			for _, payload := range args {
				port.WriteString(payload, func(err error) { results <- err })
			}
			port.Uncork()

			for range args {
				if err := <-results; err != nil {
					return err
				}
			}

			if drain {
				drained := make(chan error, 1)
				port.Drain(func(err error) { drained <- err })
				if err := <-drained; err != nil {
					return err
				}
			}

			snap := port.MetricsSnapshot()
			logger.Info().
				Int64("bytes", snap.BytesWritten).
				Int64("writes", snap.BindingWrites).
				Msg("sent")

			closed := make(chan error, 1)
			port.Close(func(err error) { closed <- err })
			return <-closed
		},
	}

	cmd.Flags().BoolVar(&drain, "drain", false, "wait for output to leave the device")
	return cmd
}
