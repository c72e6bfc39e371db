package server_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FabG/chainlit-ui/pkg/types"
)

var _ = Describe("SSE Event Stream", func() {
	It("should stream the full lifecycle of a message", func() {
		session, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		defer client.DeleteSession(ctx, session.ID)

		sse := testServer.SSEClient()
		Expect(sse.Connect(ctx, session.ID)).To(Succeed())
		defer sse.Close()

		_, err = client.SendMessage(ctx, session.ID, "stream me")
		Expect(err).NotTo(HaveOccurred())

		// The user message lands first
		envelope, err := sse.WaitFor("message.created", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		var created struct {
			Info *types.Message `json:"info"`
		}
		Expect(json.Unmarshal(envelope.Data, &created)).To(Succeed())
		Expect(created.Info.SessionID).To(Equal(session.ID))

		// Steps open and close around the reply
		_, err = sse.WaitFor("step.started", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		envelope, err = sse.WaitFor("step.closed", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		var closed struct {
			Info *types.Step `json:"info"`
		}
		Expect(json.Unmarshal(envelope.Data, &closed)).To(Succeed())
		Expect(closed.Info.Status).To(Equal(types.StepSucceeded))

		// The reply attaches an action
		_, err = sse.WaitFor("action.attached", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should scope the feed to the requested session", func() {
		ours, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		defer client.DeleteSession(ctx, ours.ID)

		theirs, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		defer client.DeleteSession(ctx, theirs.ID)

		sse := testServer.SSEClient()
		Expect(sse.Connect(ctx, ours.ID)).To(Succeed())
		defer sse.Close()

		_, err = client.SendMessage(ctx, theirs.ID, "not for us")
		Expect(err).NotTo(HaveOccurred())

		for _, envelope := range sse.Collect(500 * time.Millisecond) {
			if envelope.Type == "heartbeat" {
				continue
			}
			Expect(string(envelope.Data)).NotTo(ContainSubstring(theirs.ID))
		}
	})

	It("should emit heartbeats while idle", func() {
		sse := testServer.SSEClient()
		Expect(sse.Connect(ctx, "")).To(Succeed())
		defer sse.Close()

		Expect(sse.WaitForHeartbeat(5 * time.Second)).To(Succeed())
	})

	It("should publish stop.requested on stop", func() {
		session, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		defer client.DeleteSession(ctx, session.ID)

		sse := testServer.SSEClient()
		Expect(sse.Connect(ctx, session.ID)).To(Succeed())
		defer sse.Close()

		Expect(client.StopSession(ctx, session.ID)).To(Succeed())

		_, err = sse.WaitFor("stop.requested", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})
})
