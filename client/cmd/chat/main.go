// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fadechat/fadechat/client"
)

var (
	serverURL  string
	roomID     string
	username   string
	passphrase string
	pollRate   time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "chat",
		Short: "Terminal client for fadechat rooms",
		Long: "Joins a fadechat room and polls it for messages and presence.\n" +
			"With --passphrase, message bodies are end-to-end encrypted; the\n" +
			"passphrase never leaves this machine. Without --name the client\n" +
			"observes the room without joining.",
		RunE: run,
	}

	root.Flags().StringVar(&serverURL, "server", "http://localhost:8081", "fadechat server URL")
	root.Flags().StringVar(&roomID, "room", "", "room to enter")
	root.Flags().StringVar(&username, "name", "", "display name (omit to observe only)")
	root.Flags().StringVar(&passphrase, "passphrase", "", "room passphrase for end-to-end encryption")
	root.Flags().DurationVar(&pollRate, "poll", 5*time.Second, "poll interval")
	root.MarkFlagRequired("room")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	c, err := client.New(client.Config{
		ServerURL:  serverURL,
		RoomID:     roomID,
		Username:   username,
		Passphrase: passphrase,
		PollRate:   pollRate,
		OnUpdate:   render,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("poll failed")
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if username != "" {
		if err := c.Join(ctx); err != nil {
			if errors.Is(err, client.ErrNameTaken) {
				// Keep observing; the user can restart with another name.
				logger.Warn().Str("name", username).Msg("name taken, observing only")
			} else {
				return err
			}
		}
	}

	go c.Run(ctx)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/destroy" {
				if err := c.Destroy(ctx); err != nil {
					logger.Error().Err(err).Msg("destroy failed")
				}
				continue
			}
			if !c.Joined() {
				logger.Warn().Msg("not joined; messages cannot be sent")
				continue
			}
			if err := c.Send(ctx, line); err != nil {
				logger.Error().Err(err).Msg("send failed")
			}
		}
	}()

	<-ctx.Done()
	return nil
}

func render(u client.Update) {
	fmt.Printf("\n-- %s online --\n", strings.Join(u.Users, ", "))
	for _, m := range u.Messages {
		ts := time.UnixMilli(m.Timestamp).Format(time.Kitchen)
		fmt.Printf("[%s] %s: %s\n", ts, m.Username, m.Body)
	}
	fmt.Print("> ")
}
