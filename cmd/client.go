package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	relaygrpc "github.com/arthurdotwork/relay/internal/adapters/primary/grpc"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	actionJoin   = "Join room"
	actionLeave  = "Leave room"
	actionUpdate = "Send design update"
	actionPing   = "Ping"
	actionQuit   = "Quit"
)

func Client(ctx context.Context, c *cobra.Command) error {
	addr, _ := c.Flags().GetString("addr")
	token, _ := c.Flags().GetString("token")

	if token == "" {
		prompt := promptui.Prompt{Label: "Token", Mask: '*'}
		t, err := prompt.Run()
		if err != nil {
			return errors.Wrap(err, "prompt.Run")
		}
		token = t
	}

	client, err := relaygrpc.Dial(ctx, addr, token)
	if err != nil {
		return errors.Wrap(err, "relaygrpc.Dial")
	}
	defer client.Close()

	sink := make(chan error, 2)
	go receiveMessages(client, sink)

	done := make(chan struct{})
	defer close(done)

	requests := make(chan domain.Inbound)
	go forwardRequests(done, requests, sink, promptRequest())

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sink:
			if err != nil {
				return errors.Wrap(err, "session")
			}

			return nil
		case in := <-requests:
			if err := client.Send(in); err != nil {
				return errors.Wrap(err, "client.Send")
			}
		}
	}
}

// forwardRequests pulls one request at a time from next and hands it to
// the session loop until next reports quit or fails, or done closes.
func forwardRequests(done <-chan struct{}, requests chan<- domain.Inbound, sink chan<- error, next func() (domain.Inbound, bool, error)) {
	report := func(err error) {
		select {
		case sink <- err:
		case <-done:
		}
	}

	for {
		in, ok, err := next()
		if err != nil {
			report(err)
			return
		}
		if !ok {
			report(nil)
			return
		}

		select {
		case requests <- in:
		case <-done:
			return
		}
	}
}

// promptRequest asks for an action and builds the matching request.
func promptRequest() func() (domain.Inbound, bool, error) {
	var room string

	return func() (domain.Inbound, bool, error) {
		selector := promptui.Select{
			Label: "Action",
			Items: []string{actionJoin, actionLeave, actionUpdate, actionPing, actionQuit},
		}

		_, action, err := selector.Run()
		if err != nil {
			return domain.Inbound{}, false, errors.Wrap(err, "selector.Run")
		}

		return buildRequest(action, &room)
	}
}

func buildRequest(action string, room *string) (domain.Inbound, bool, error) {
	switch action {
	case actionJoin:
		prompt := promptui.Prompt{Label: "Room", Default: *room}
		r, err := prompt.Run()
		if err != nil {
			return domain.Inbound{}, false, errors.Wrap(err, "prompt.Run")
		}
		*room = r

		return domain.Inbound{Kind: domain.InboundJoinRoom, RoomID: r}, true, nil
	case actionLeave:
		return domain.Inbound{Kind: domain.InboundLeaveRoom}, true, nil
	case actionUpdate:
		prompt := promptui.Prompt{
			Label: "Payload (JSON)",
			Validate: func(s string) error {
				if !jsoniter.Valid([]byte(s)) {
					return errors.New("payload must be valid JSON")
				}
				return nil
			},
		}
		payload, err := prompt.Run()
		if err != nil {
			return domain.Inbound{}, false, errors.Wrap(err, "prompt.Run")
		}

		return domain.Inbound{Kind: domain.InboundDesignUpdate, RoomID: *room, Payload: []byte(payload)}, true, nil
	case actionPing:
		return domain.Inbound{Kind: domain.InboundPing, Timestamp: time.Now().UnixMilli()}, true, nil
	default:
		return domain.Inbound{}, false, nil
	}
}

func receiveMessages(client *relaygrpc.SessionClient, sink chan<- error) {
	for {
		msg, err := client.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				sink <- nil
				return
			}

			sink <- err
			return
		}

		switch msg.Kind {
		case domain.OutboundWelcome:
			fmt.Printf("Connected as %s (connection %s)\n", msg.UserID, msg.ConnectionID)
		case domain.OutboundJoinAck:
			fmt.Printf("You joined %s (%d members)\n", msg.RoomID, msg.Members)
		case domain.OutboundLeaveAck:
			fmt.Printf("You left %s\n", msg.RoomID)
		case domain.OutboundUpdateAck:
			fmt.Printf("Update #%d accepted\n", msg.Sequence)
		case domain.OutboundMemberJoined:
			fmt.Printf("%s joined %s\n", msg.UserID, msg.RoomID)
		case domain.OutboundMemberLeft:
			fmt.Printf("%s left %s\n", msg.ConnectionID, msg.RoomID)
		case domain.OutboundDesignUpdate:
			fmt.Printf("#%d from %s: %s\n", msg.Sequence, msg.SenderConnectionID, msg.Payload)
		case domain.OutboundPong:
			fmt.Printf("Pong (%dms)\n", time.Now().UnixMilli()-msg.Timestamp)
		case domain.OutboundError:
			fmt.Printf("Error %s: %s\n", msg.Code, msg.Message)
		case domain.OutboundServerClosing:
			fmt.Printf("Server is closing: %s\n", msg.Message)
			sink <- nil
			return
		default:
			fmt.Printf("Unknown message type: %s\n", msg.Kind)
		}
	}
}
