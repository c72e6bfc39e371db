package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// The demo application echoes every message back through a traced step tree,
// attaches a "shout" action to its replies, and answers stop signals. It
// exists so a fresh checkout has something to click against.

func registerDemo(hooks *runtime.Hooks) error {
	if err := hooks.OnChatStart(demoChatStart); err != nil {
		return err
	}
	if err := hooks.OnMessage(demoMessage); err != nil {
		return err
	}
	if err := hooks.OnStop(demoStop); err != nil {
		return err
	}
	return hooks.OnAction("shout", demoShout)
}

func demoChatStart(ctx context.Context, s *runtime.Session) error {
	_, err := s.SendText(ctx, types.AuthorAssistant, "Hi! I echo whatever you send.")
	return err
}

func demoMessage(ctx context.Context, s *runtime.Session, msg *types.Message) error {
	return runtime.Run(ctx, types.StepTypeRun, "respond", func(ctx context.Context) error {
		reply, err := composeReply(ctx, msg.Content)
		if err != nil {
			return err
		}
		sent, err := s.SendText(ctx, types.AuthorAssistant, reply)
		if err != nil {
			return err
		}
		s.Actions().Attach(&types.Action{
			Name:              "shout",
			Label:             "Shout it",
			Payload:           types.StringValue(reply),
			AttachedMessageID: &sent.ID,
		})
		return nil
	})
}

// composeReply is the traced inner step of the demo response.
var composeReply = runtime.Wrap(types.StepTypeOther, "compose", func(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("You said: %s", content), nil
})

func demoStop(ctx context.Context, s *runtime.Session) error {
	_, err := s.SendText(ctx, types.AuthorSystem, "Stopped.")
	return err
}

func demoShout(ctx context.Context, s *runtime.Session, action *types.Action) error {
	text := action.Payload.Text()
	if text == "" {
		text = "nothing to shout"
	}
	_, err := s.SendText(ctx, types.AuthorAssistant, strings.ToUpper(text))
	return err
}
