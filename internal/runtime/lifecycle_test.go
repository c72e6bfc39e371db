package runtime_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/types"
)

var _ = Describe("Session Lifecycle", func() {
	var (
		reg       *runtime.Registry
		stopCalls atomic.Int32
		endCalls  atomic.Int32
	)

	BeforeEach(func() {
		stopCalls.Store(0)
		endCalls.Store(0)

		hooks := runtime.NewHooks()

		research := runtime.Wrap(types.StepTypeRetrieval, "research", func(ctx context.Context, q string) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(10 * time.Millisecond):
				return "notes on " + q, nil
			}
		})
		answer := runtime.Wrap(types.StepTypeLLM, "answer", func(ctx context.Context, q string) (string, error) {
			notes, err := research(ctx, q)
			if err != nil {
				return "", err
			}
			return "based on " + notes, nil
		})

		Expect(hooks.OnMessage(func(ctx context.Context, s *runtime.Session, msg *types.Message) error {
			if msg.Content == "block" {
				return runtime.Run(ctx, types.StepTypeTool, "blocking", func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				})
			}
			out, err := answer(ctx, msg.Content)
			if err != nil {
				return err
			}
			_, err = s.SendText(ctx, types.AuthorAssistant, out)
			return err
		})).To(Succeed())

		Expect(hooks.OnStop(func(ctx context.Context, s *runtime.Session) error {
			stopCalls.Add(1)
			return nil
		})).To(Succeed())

		Expect(hooks.OnChatEnd(func(ctx context.Context, s *runtime.Session) error {
			endCalls.Add(1)
			return nil
		})).To(Succeed())

		reg = runtime.NewRegistry(hooks, runtime.WithLogger(zerolog.Nop()))
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(reg.Shutdown(ctx)).To(Succeed())
	})

	Describe("a full conversation", func() {
		It("should answer a message with a traced step tree", func() {
			s, err := reg.Create(context.Background(), runtime.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.HandleMessage(context.Background(), "what is go", nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int { return s.Chat().Len() }, "2s", "10ms").Should(Equal(2))

			msgs := s.Chat().Messages()
			Expect(msgs[0].Author).To(Equal(types.AuthorUser))
			Expect(msgs[1].Author).To(Equal(types.AuthorAssistant))
			Expect(msgs[1].Content).To(ContainSubstring("notes on what is go"))

			Eventually(func() int { return len(s.Steps()) }, "2s", "10ms").Should(Equal(2))

			var answerStep, researchStep *types.Step
			for _, st := range s.Steps() {
				switch st.Name {
				case "answer":
					answerStep = st
				case "research":
					researchStep = st
				}
			}
			Expect(answerStep).NotTo(BeNil())
			Expect(researchStep).NotTo(BeNil())
			Expect(researchStep.ParentID).NotTo(BeNil())
			Expect(*researchStep.ParentID).To(Equal(answerStep.ID))
			Expect(answerStep.Children).To(ConsistOf(researchStep.ID))
			Expect(answerStep.Status).To(Equal(types.StepSucceeded))
			Expect(researchStep.Status).To(Equal(types.StepSucceeded))
			Expect(s.Info().OpenSteps).To(BeZero())
		})

		It("should stop mid-step and keep the session usable", func() {
			s, err := reg.Create(context.Background(), runtime.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.HandleMessage(context.Background(), "block", nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int { return s.Info().OpenSteps }, "2s", "10ms").Should(Equal(1))

			Expect(s.Stop(context.Background())).To(Succeed())

			Eventually(func() types.SessionState { return s.State() }, "2s", "10ms").Should(Equal(types.SessionActive))
			Expect(s.Info().OpenSteps).To(BeZero())
			Expect(stopCalls.Load()).To(Equal(int32(1)))

			var blocking *types.Step
			for _, st := range s.Steps() {
				if st.Name == "blocking" {
					blocking = st
				}
			}
			Expect(blocking).NotTo(BeNil())
			Expect(blocking.Status).To(Equal(types.StepStopped))

			// The transcript survives and the session answers again.
			before := s.Chat().Len()
			_, err = s.HandleMessage(context.Background(), "still there", nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() int { return s.Chat().Len() }, "2s", "10ms").Should(Equal(before + 2))
		})

		It("should run chat end exactly once on destroy", func() {
			s, err := reg.Create(context.Background(), runtime.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(reg.Destroy(context.Background(), s.ID)).To(Succeed())
			Expect(endCalls.Load()).To(Equal(int32(1)))
			Expect(s.State()).To(Equal(types.SessionEnded))

			_, err = reg.Get(s.ID)
			Expect(err).To(MatchError(runtime.ErrSessionNotFound))

			Expect(reg.Destroy(context.Background(), s.ID)).To(Succeed())
			Expect(endCalls.Load()).To(Equal(int32(1)))
		})

		It("should keep sessions isolated under stop", func() {
			s1, err := reg.Create(context.Background(), runtime.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())
			s2, err := reg.Create(context.Background(), runtime.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())

			_, err = s1.HandleMessage(context.Background(), "block", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = s2.HandleMessage(context.Background(), "block", nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int { return s1.Info().OpenSteps }, "2s", "10ms").Should(Equal(1))
			Eventually(func() int { return s2.Info().OpenSteps }, "2s", "10ms").Should(Equal(1))

			Expect(s1.Stop(context.Background())).To(Succeed())
			Eventually(func() int { return s1.Info().OpenSteps }, "2s", "10ms").Should(BeZero())

			Consistently(func() int { return s2.Info().OpenSteps }, "100ms", "20ms").Should(Equal(1))
			Expect(s2.Stop(context.Background())).To(Succeed())
			Eventually(func() int { return s2.Info().OpenSteps }, "2s", "10ms").Should(BeZero())
		})
	})
})
