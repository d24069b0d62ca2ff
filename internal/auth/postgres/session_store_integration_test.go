// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authkit/internal/auth"
	"github.com/holomush/authkit/internal/auth/postgres"
)

var _ = Describe("SessionStore", func() {
	var (
		user  *auth.User
		now   time.Time
		clock func() time.Time
	)

	BeforeEach(func() {
		truncateAll()

		var err error
		user, err = auth.NewUser("sess@example.com", "hash", time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(postgres.NewUserRepository(testPool).Create(suiteCtx, user)).To(Succeed())

		now = time.Now().UTC().Truncate(time.Microsecond)
		clock = func() time.Time { return now }
	})

	newSession := func() *auth.Session {
		session, err := auth.NewSession(user.ID, "curl/8", "10.0.0.1", now)
		Expect(err).NotTo(HaveOccurred())
		return session
	}

	It("creates and resolves a session", func() {
		sessions := postgres.NewSessionStore(testPool, time.Hour, postgres.WithClock(clock))

		id, err := sessions.Create(suiteCtx, newSession())
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(HaveLen(2 * auth.SessionTokenBytes))

		got, err := sessions.Get(suiteCtx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(user.ID))
		Expect(got.UserAgent).To(Equal("curl/8"))
		Expect(got.IPAddress).To(Equal("10.0.0.1"))
		Expect(got.ExpiresAt).To(BeTemporally("~", now.Add(time.Hour), time.Millisecond))
	})

	It("does not store the plaintext identifier", func() {
		sessions := postgres.NewSessionStore(testPool, time.Hour, postgres.WithClock(clock))
		id, err := sessions.Create(suiteCtx, newSession())
		Expect(err).NotTo(HaveOccurred())

		var n int
		Expect(testPool.QueryRow(suiteCtx, `SELECT COUNT(*) FROM sessions WHERE token_hash = $1`, id).Scan(&n)).To(Succeed())
		Expect(n).To(BeZero())
		Expect(testPool.QueryRow(suiteCtx, `SELECT COUNT(*) FROM sessions WHERE token_hash = $1`, auth.HashSessionToken(id)).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(1))
	})

	It("hides expired sessions and sweeps them", func() {
		sessions := postgres.NewSessionStore(testPool, time.Minute, postgres.WithClock(clock))
		id, err := sessions.Create(suiteCtx, newSession())
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(time.Minute)

		_, err = sessions.Get(suiteCtx, id)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

		removed, err := sessions.DeleteExpired(suiteCtx)
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(Equal(int64(1)))
	})

	It("deletes idempotently", func() {
		sessions := postgres.NewSessionStore(testPool, time.Hour, postgres.WithClock(clock))
		id, err := sessions.Create(suiteCtx, newSession())
		Expect(err).NotTo(HaveOccurred())

		Expect(sessions.Delete(suiteCtx, id)).To(Succeed())
		Expect(sessions.Delete(suiteCtx, id)).To(Succeed())

		_, err = sessions.Get(suiteCtx, id)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("backs a working auth service", func() {
		hasher, err := auth.NewBcryptHasher(4)
		Expect(err).NotTo(HaveOccurred())
		users := postgres.NewUserRepository(testPool)
		sessions := postgres.NewSessionStore(testPool, time.Hour)
		svc, err := auth.NewAuthService(users, sessions, hasher)
		Expect(err).NotTo(HaveOccurred())
		guard, err := auth.NewGuard(sessions, users)
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Signup(suiteCtx, "flow@example.com", "correcthorse")
		Expect(err).NotTo(HaveOccurred())

		id, err := svc.Login(suiteCtx, auth.LoginRequest{Email: "flow@example.com", Password: "correcthorse"})
		Expect(err).NotTo(HaveOccurred())

		identity, err := guard.Authenticate(suiteCtx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(identity.User.Email).To(Equal("flow@example.com"))

		Expect(svc.Logout(suiteCtx, id)).To(Succeed())
		_, err = guard.Authenticate(suiteCtx, id)
		Expect(err).To(HaveOccurred())
	})
})
