package e2e_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FabG/chainlit-ui/citest/testutil"
	"github.com/FabG/chainlit-ui/pkg/types"
)

var _ = Describe("Stop Flow", func() {
	var (
		blockingServer *testutil.TestServer
		blockingClient *testutil.TestClient
		started        chan string
	)

	BeforeEach(func() {
		started = make(chan string, 1)

		var err error
		blockingServer, err = testutil.StartTestServer(
			testutil.WithHooks(testutil.BlockingHooks(started)),
		)
		Expect(err).NotTo(HaveOccurred())
		blockingClient = blockingServer.Client()
	})

	AfterEach(func() {
		if blockingServer != nil {
			blockingServer.Stop()
		}
	})

	It("should cancel open work and mark its steps stopped", func() {
		session, err := blockingClient.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = blockingClient.SendMessage(ctx, session.ID, "park here")
		Expect(err).NotTo(HaveOccurred())

		// The hook is inside its step, parked on the context
		Eventually(started, 5*time.Second).Should(Receive(Equal("park here")))

		sse := blockingServer.SSEClient()
		Expect(sse.Connect(ctx, session.ID)).To(Succeed())
		defer sse.Close()

		Expect(blockingClient.StopSession(ctx, session.ID)).To(Succeed())

		// The cancelled step closes as stopped, not failed
		Eventually(func() types.StepStatus {
			steps, err := blockingClient.Steps(ctx, session.ID)
			if err != nil || len(steps) == 0 {
				return ""
			}
			return steps[0].Status
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(types.StepStopped))

		// The stop hook speaks, then the session settles back to active
		Eventually(func() []string {
			msgs, _ := blockingClient.Messages(ctx, session.ID)
			var contents []string
			for _, m := range msgs {
				contents = append(contents, m.Content)
			}
			return contents
		}, 5*time.Second, 50*time.Millisecond).Should(ContainElement("stopped"))

		Eventually(func() types.SessionState {
			info, err := blockingClient.GetSession(ctx, session.ID)
			if err != nil {
				return ""
			}
			return info.State
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(types.SessionActive))

		// The feed saw the stop request and the state transitions
		_, err = sse.WaitFor("stop.requested", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		Expect(blockingClient.DeleteSession(ctx, session.ID)).To(Succeed())
	})

	It("should accept new messages after a stop", func() {
		session, err := blockingClient.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = blockingClient.SendMessage(ctx, session.ID, "first")
		Expect(err).NotTo(HaveOccurred())
		Eventually(started, 5*time.Second).Should(Receive())

		Expect(blockingClient.StopSession(ctx, session.ID)).To(Succeed())

		Eventually(func() types.SessionState {
			info, err := blockingClient.GetSession(ctx, session.ID)
			if err != nil {
				return ""
			}
			return info.State
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(types.SessionActive))

		_, err = blockingClient.SendMessage(ctx, session.ID, "second")
		Expect(err).NotTo(HaveOccurred())
		Eventually(started, 5*time.Second).Should(Receive(Equal("second")))

		Expect(blockingClient.StopSession(ctx, session.ID)).To(Succeed())
		Expect(blockingClient.DeleteSession(ctx, session.ID)).To(Succeed())
	})
})
