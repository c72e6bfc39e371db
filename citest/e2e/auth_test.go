package e2e_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FabG/chainlit-ui/citest/testutil"
)

var _ = Describe("Auth Flow", func() {
	var (
		authServer *testutil.TestServer
		authClient *testutil.TestClient
	)

	BeforeEach(func() {
		var err error
		authServer, err = testutil.StartTestServer(
			testutil.WithHooks(testutil.AuthHooks("alice", "s3cret")),
		)
		Expect(err).NotTo(HaveOccurred())
		authClient = authServer.Client()
	})

	AfterEach(func() {
		if authServer != nil {
			authServer.Stop()
		}
	})

	It("should log in with valid credentials", func() {
		user, err := authClient.Login(ctx, "alice", "s3cret")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.ID).To(Equal("alice"))
		Expect(user.Identifier).To(Equal("alice"))
	})

	It("should reject bad credentials with 401", func() {
		resp, err := authClient.Post(ctx, "/auth/login", map[string]string{
			"username": "alice", "password": "wrong",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(resp.ErrorCode()).To(Equal("UNAUTHORIZED"))
	})

	It("should create sessions bound to the authenticated user", func() {
		user, err := authClient.Login(ctx, "alice", "s3cret")
		Expect(err).NotTo(HaveOccurred())

		resp, err := authClient.Post(ctx, "/session", map[string]any{
			"user": user,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.IsSuccess()).To(BeTrue())
		Expect(resp.String()).To(ContainSubstring(`"identifier":"alice"`))
	})
})
