package testutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// EchoHooks builds the standard test application: every user message gets an
// echoed assistant reply produced inside a traced step tree, replies carry a
// "repeat" action, and stop signals are acknowledged with a system message.
func EchoHooks() *runtime.Hooks {
	hooks := runtime.NewHooks()

	hooks.OnChatStart(func(ctx context.Context, s *runtime.Session) error {
		_, err := s.SendText(ctx, types.AuthorAssistant, "ready")
		return err
	})

	compose := runtime.Wrap(types.StepTypeOther, "compose", func(ctx context.Context, content string) (string, error) {
		return "echo: " + content, nil
	})

	hooks.OnMessage(func(ctx context.Context, s *runtime.Session, msg *types.Message) error {
		return runtime.Run(ctx, types.StepTypeRun, "respond", func(ctx context.Context) error {
			reply, err := compose(ctx, msg.Content)
			if err != nil {
				return err
			}
			sent, err := s.SendText(ctx, types.AuthorAssistant, reply)
			if err != nil {
				return err
			}
			s.Actions().Attach(&types.Action{
				Name:              "repeat",
				Label:             "Say it again",
				Payload:           types.StringValue(reply),
				AttachedMessageID: &sent.ID,
			})
			return nil
		})
	})

	hooks.OnStop(func(ctx context.Context, s *runtime.Session) error {
		_, err := s.SendText(ctx, types.AuthorSystem, "stopped")
		return err
	})

	hooks.OnAction("repeat", func(ctx context.Context, s *runtime.Session, action *types.Action) error {
		_, err := s.SendText(ctx, types.AuthorAssistant, action.Payload.Text())
		return err
	})

	hooks.SetStarters(func(ctx context.Context) []types.Starter {
		return []types.Starter{
			{Label: "Say hi", Message: "hi"},
		}
	})

	return hooks
}

// BlockingHooks builds an application whose message hook parks until its
// context is cancelled. Stop and shutdown tests use it to exercise open work.
func BlockingHooks(started chan<- string) *runtime.Hooks {
	hooks := runtime.NewHooks()

	hooks.OnMessage(func(ctx context.Context, s *runtime.Session, msg *types.Message) error {
		return runtime.Run(ctx, types.StepTypeRun, "block", func(ctx context.Context) error {
			if started != nil {
				started <- msg.Content
			}
			<-ctx.Done()
			return ctx.Err()
		})
	})

	hooks.OnStop(func(ctx context.Context, s *runtime.Session) error {
		_, err := s.SendText(ctx, types.AuthorSystem, "stopped")
		return err
	})

	return hooks
}

// AuthHooks builds an application with a single fixed credential pair.
func AuthHooks(username, password string) *runtime.Hooks {
	hooks := runtime.NewHooks()

	hooks.SetAuth(func(ctx context.Context, user, pass string) (*types.User, error) {
		if user != username || pass != password {
			return nil, fmt.Errorf("bad credentials")
		}
		return &types.User{ID: strings.ToLower(user), Identifier: user}, nil
	})

	return hooks
}
