package e2e_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FabG/chainlit-ui/pkg/types"
)

// transcript fetches the session's message contents in order.
func transcript(sessionID string) func() []string {
	return func() []string {
		msgs, err := client.Messages(ctx, sessionID)
		if err != nil {
			return nil
		}
		contents := make([]string, len(msgs))
		for i, m := range msgs {
			contents[i] = m.Content
		}
		return contents
	}
}

var _ = Describe("Conversation Flow", func() {
	It("should complete a full message round trip", func() {
		session, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		defer client.DeleteSession(ctx, session.ID)

		// The chat start hook greets asynchronously
		Eventually(transcript(session.ID), 5*time.Second, 50*time.Millisecond).
			Should(ContainElement("ready"))

		msg, err := client.SendMessage(ctx, session.ID, "hello there")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Author).To(Equal(types.AuthorUser))

		Eventually(transcript(session.ID), 5*time.Second, 50*time.Millisecond).
			Should(ContainElement("echo: hello there"))

		// The reply was produced inside a step tree that fully closes
		var steps []*types.Step
		Eventually(func() bool {
			steps, err = client.Steps(ctx, session.ID)
			if err != nil || len(steps) < 2 {
				return false
			}
			for _, s := range steps {
				if !s.Closed() {
					return false
				}
			}
			return true
		}, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

		for _, s := range steps {
			Expect(s.Status).To(Equal(types.StepSucceeded))
		}
	})

	It("should run action callbacks against the attached payload", func() {
		session, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		defer client.DeleteSession(ctx, session.ID)

		_, err = client.SendMessage(ctx, session.ID, "once")
		Expect(err).NotTo(HaveOccurred())

		Eventually(transcript(session.ID), 5*time.Second, 50*time.Millisecond).
			Should(ContainElement("echo: once"))

		// Wait for the reply's action to attach before invoking it
		Eventually(func() bool {
			sess, err := testServer.Registry.Get(session.ID)
			if err != nil {
				return false
			}
			_, ok := sess.Actions().Get("repeat")
			return ok
		}, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

		// The attached action carries the reply as payload
		Expect(client.InvokeAction(ctx, session.ID, "repeat", nil)).To(Succeed())

		Eventually(func() int {
			count := 0
			for _, content := range transcript(session.ID)() {
				if content == "echo: once" {
					count++
				}
			}
			return count
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(2))
	})

	It("should serve starters before any session exists", func() {
		starters, err := client.Starters(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(starters).NotTo(BeEmpty())
		Expect(starters[0].Message).NotTo(BeEmpty())
	})

	It("should resume a destroyed session from history", func() {
		session, err := client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = client.SendMessage(ctx, session.ID, "persist me")
		Expect(err).NotTo(HaveOccurred())

		Eventually(transcript(session.ID), 5*time.Second, 50*time.Millisecond).
			Should(ContainElement("echo: persist me"))

		Expect(client.DeleteSession(ctx, session.ID)).To(Succeed())

		resumed, err := client.ResumeSession(ctx, session.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(resumed.ID).To(Equal(session.ID))
		Expect(resumed.State).To(Equal(types.SessionActive))
		Expect(resumed.Messages).To(BeNumerically(">=", 3))

		// The transcript is seeded and the session accepts new messages
		Expect(transcript(session.ID)()).To(ContainElement("persist me"))

		_, err = client.SendMessage(ctx, session.ID, "after resume")
		Expect(err).NotTo(HaveOccurred())
		Eventually(transcript(session.ID), 5*time.Second, 50*time.Millisecond).
			Should(ContainElement("echo: after resume"))

		client.DeleteSession(ctx, session.ID)
	})

	It("should refuse to resume an unknown session", func() {
		_, err := client.ResumeSession(ctx, "never-created")
		Expect(err).To(HaveOccurred())
	})
})
