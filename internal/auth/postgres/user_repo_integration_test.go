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

var _ = Describe("UserRepository", func() {
	var repo *postgres.UserRepository

	BeforeEach(func() {
		truncateAll()
		repo = postgres.NewUserRepository(testPool)
	})

	newUser := func(email string) *auth.User {
		user, err := auth.NewUser(email, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", time.Now())
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	It("round-trips a user by id and by email", func() {
		user := newUser("ada@example.com")
		Expect(repo.Create(suiteCtx, user)).To(Succeed())

		byID, err := repo.GetByID(suiteCtx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Email).To(Equal("ada@example.com"))
		Expect(byID.PasswordHash).To(Equal(user.PasswordHash))
		Expect(byID.CreatedAt).To(BeTemporally("~", user.CreatedAt, time.Millisecond))

		byEmail, err := repo.GetByEmail(suiteCtx, "ada@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(user.ID))
	})

	It("rejects a duplicate email", func() {
		Expect(repo.Create(suiteCtx, newUser("dup@example.com"))).To(Succeed())

		err := repo.Create(suiteCtx, newUser("dup@example.com"))
		Expect(errors.Is(err, auth.ErrEmailTaken)).To(BeTrue())
	})

	It("treats email lookups as case-sensitive", func() {
		Expect(repo.Create(suiteCtx, newUser("Case@example.com"))).To(Succeed())

		_, err := repo.GetByEmail(suiteCtx, "case@example.com")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("reports unknown users as not found", func() {
		_, err := repo.GetByID(suiteCtx, "missing")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("updates the password hash", func() {
		user := newUser("upd@example.com")
		Expect(repo.Create(suiteCtx, user)).To(Succeed())

		user.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
		Expect(repo.Update(suiteCtx, user)).To(Succeed())

		got, err := repo.GetByID(suiteCtx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("$2a$10$abcdefghijklmnopqrstuv"))
	})

	It("deletes a user", func() {
		user := newUser("del@example.com")
		Expect(repo.Create(suiteCtx, user)).To(Succeed())
		Expect(repo.Delete(suiteCtx, user.ID)).To(Succeed())

		_, err := repo.GetByID(suiteCtx, user.ID)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})
})
