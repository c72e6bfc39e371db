package server_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FabG/chainlit-ui/pkg/types"
)

var _ = Describe("Server Endpoints", func() {
	var session *types.SessionInfo

	BeforeEach(func() {
		var err error
		session, err = client.CreateSession(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if session != nil {
			client.DeleteSession(ctx, session.ID)
		}
	})

	// ==================== Session Endpoints ====================
	Describe("Session Endpoints", func() {
		Describe("POST /session", func() {
			It("should create a session in active state", func() {
				Expect(session.ID).NotTo(BeEmpty())
				Expect(session.State).To(Equal(types.SessionActive))
			})

			It("should honor a client-supplied ID", func() {
				resp, err := client.Post(ctx, "/session", map[string]string{
					"id": "endpoint-test-fixed-id",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.IsSuccess()).To(BeTrue())

				var created types.SessionInfo
				Expect(resp.JSON(&created)).To(Succeed())
				Expect(created.ID).To(Equal("endpoint-test-fixed-id"))

				// Cleanup
				client.DeleteSession(ctx, created.ID)
			})

			It("should reject a duplicate ID with 409", func() {
				resp, err := client.Post(ctx, "/session", map[string]string{
					"id": session.ID,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				Expect(resp.ErrorCode()).To(Equal("CONFLICT"))
			})
		})

		Describe("GET /session", func() {
			It("should list sessions", func() {
				sessions, err := client.ListSessions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(sessions)).To(BeNumerically(">=", 1))

				// Verify our session is in the list
				found := false
				for _, s := range sessions {
					if s.ID == session.ID {
						found = true
						break
					}
				}
				Expect(found).To(BeTrue())
			})
		})

		Describe("GET /session/{sessionID}", func() {
			It("should retrieve session by ID", func() {
				got, err := client.GetSession(ctx, session.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(session.ID))
			})

			It("should return 404 for unknown session", func() {
				resp, err := client.Get(ctx, "/session/no-such-session")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(resp.ErrorCode()).To(Equal("NOT_FOUND"))
			})
		})

		Describe("DELETE /session/{sessionID}", func() {
			It("should destroy the session", func() {
				Expect(client.DeleteSession(ctx, session.ID)).To(Succeed())

				resp, err := client.Get(ctx, "/session/"+session.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

				session = nil
			})
		})
	})

	// ==================== Message Endpoints ====================
	Describe("Message Endpoints", func() {
		Describe("POST /session/{sessionID}/message", func() {
			It("should record the user message", func() {
				msg, err := client.SendMessage(ctx, session.ID, "hello")
				Expect(err).NotTo(HaveOccurred())
				Expect(msg.ID).NotTo(BeEmpty())
				Expect(msg.SessionID).To(Equal(session.ID))
				Expect(msg.Author).To(Equal(types.AuthorUser))
				Expect(msg.Content).To(Equal("hello"))
			})

			It("should reject empty content", func() {
				resp, err := client.Post(ctx, "/session/"+session.ID+"/message", map[string]string{})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(resp.ErrorCode()).To(Equal("INVALID_REQUEST"))
			})

			It("should produce an echoed reply", func() {
				_, err := client.SendMessage(ctx, session.ID, "round trip")
				Expect(err).NotTo(HaveOccurred())

				Eventually(func() []string {
					msgs, err := client.Messages(ctx, session.ID)
					if err != nil {
						return nil
					}
					var contents []string
					for _, m := range msgs {
						contents = append(contents, m.Content)
					}
					return contents
				}, 5*time.Second, 50*time.Millisecond).Should(ContainElement("echo: round trip"))
			})
		})

		Describe("GET /session/{sessionID}/message", func() {
			It("should include the chat start greeting", func() {
				Eventually(func() []*types.Message {
					msgs, _ := client.Messages(ctx, session.ID)
					return msgs
				}, 5*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())

				msgs, err := client.Messages(ctx, session.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs[0].Author).To(Equal(types.AuthorAssistant))
				Expect(msgs[0].Content).To(Equal("ready"))
			})
		})
	})

	// ==================== Step Endpoints ====================
	Describe("GET /session/{sessionID}/steps", func() {
		It("should expose the traced step tree", func() {
			_, err := client.SendMessage(ctx, session.ID, "trace me")
			Expect(err).NotTo(HaveOccurred())

			var steps []*types.Step
			Eventually(func() int {
				steps, _ = client.Steps(ctx, session.ID)
				closed := 0
				for _, s := range steps {
					if s.Status != types.StepRunning {
						closed++
					}
				}
				return closed
			}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 2))

			byName := map[string]*types.Step{}
			for _, s := range steps {
				byName[s.Name] = s
			}
			respond := byName["respond"]
			compose := byName["compose"]
			Expect(respond).NotTo(BeNil())
			Expect(compose).NotTo(BeNil())
			Expect(respond.Status).To(Equal(types.StepSucceeded))
			Expect(compose.Status).To(Equal(types.StepSucceeded))
			Expect(compose.ParentID).NotTo(BeNil())
			Expect(*compose.ParentID).To(Equal(respond.ID))
		})
	})

	// ==================== Action Endpoints ====================
	Describe("POST /session/{sessionID}/action/{name}", func() {
		It("should run the registered callback", func() {
			Expect(client.InvokeAction(ctx, session.ID, "repeat", "again")).To(Succeed())

			Eventually(func() []string {
				msgs, _ := client.Messages(ctx, session.ID)
				var contents []string
				for _, m := range msgs {
					contents = append(contents, m.Content)
				}
				return contents
			}, 5*time.Second, 50*time.Millisecond).Should(ContainElement("again"))
		})

		It("should return 404 with a suggestion for a typo", func() {
			resp, err := client.Post(ctx, "/session/"+session.ID+"/action/repaet", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.String()).To(ContainSubstring("repeat"))
		})
	})

	// ==================== Stop Endpoint ====================
	Describe("POST /session/{sessionID}/stop", func() {
		It("should acknowledge and notify the stop hook", func() {
			Expect(client.StopSession(ctx, session.ID)).To(Succeed())

			Eventually(func() []string {
				msgs, _ := client.Messages(ctx, session.ID)
				var contents []string
				for _, m := range msgs {
					contents = append(contents, m.Content)
				}
				return contents
			}, 5*time.Second, 50*time.Millisecond).Should(ContainElement("stopped"))
		})
	})

	// ==================== Onboarding Endpoints ====================
	Describe("Onboarding Endpoints", func() {
		It("GET /starters should return the configured starters", func() {
			starters, err := client.Starters(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(starters).To(HaveLen(1))
			Expect(starters[0].Label).To(Equal("Say hi"))
		})

		It("GET /profiles should return an empty array without a provider", func() {
			resp, err := client.Get(ctx, "/profiles")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.String()).To(ContainSubstring("[]"))
		})
	})

	// ==================== Auth Endpoint ====================
	Describe("POST /auth/login", func() {
		It("should report auth as not configured", func() {
			resp, err := client.Post(ctx, "/auth/login", map[string]string{
				"username": "u", "password": "p",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotImplemented))
			Expect(resp.ErrorCode()).To(Equal("NOT_CONFIGURED"))
		})
	})

	// ==================== Operations Endpoints ====================
	Describe("Operations Endpoints", func() {
		It("GET /health should report ok", func() {
			resp, err := client.Get(ctx, "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.String()).To(ContainSubstring(`"status":"ok"`))
		})

		It("GET /metrics should expose runtime counters", func() {
			resp, err := client.Get(ctx, "/metrics")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.String()).To(ContainSubstring("chainlit_sessions_created_total"))
		})
	})
})
