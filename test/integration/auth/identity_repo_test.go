// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package auth_test

import (
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatekeep/gatekeep/internal/auth"
)

func mustCredentials(email, phone string) *auth.Credentials {
	creds, err := auth.NewCredentials(email, phone, "+1", "$argon2id$placeholder")
	Expect(err).NotTo(HaveOccurred())
	return creds
}

var _ = Describe("IdentityRepository", func() {
	BeforeEach(func() {
		env.reset()
	})

	Describe("Create and find", func() {
		It("finds an identity by every lookup path", func() {
			creds := mustCredentials("Alice@Example.com", "5551234567")
			Expect(env.Repo.Create(env.ctx, creds)).To(Succeed())

			byEmail, err := env.Repo.FindByEmail(env.ctx, "ALICE@example.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(creds.ID))
			Expect(*byEmail.Email).To(Equal("alice@example.com"))

			byPhone, err := env.Repo.FindByPhoneNumber(env.ctx, "5551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(byPhone.ID).To(Equal(creds.ID))

			byID, err := env.Repo.FindByID(env.ctx, creds.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Status).To(Equal(auth.StatusActive))

			secret, err := env.Repo.FindCredentialsByIdentifier(env.ctx, "5551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(secret.PasswordHash).To(Equal("$argon2id$placeholder"))
		})

		It("reports unknown identities as not found", func() {
			_, err := env.Repo.FindByID(env.ctx, ulid.Make())
			Expect(err).To(MatchError(auth.ErrNotFound))

			_, err = env.Repo.FindCredentialsByIdentifier(env.ctx, "nobody@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("maps unique violations to the identifier that collided", func() {
			Expect(env.Repo.Create(env.ctx, mustCredentials("bob@example.com", "5550000001"))).To(Succeed())

			err := env.Repo.Create(env.ctx, mustCredentials("BOB@example.com", ""))
			Expect(err).To(MatchError(auth.ErrEmailTaken))

			err = env.Repo.Create(env.ctx, mustCredentials("", "5550000001"))
			Expect(err).To(MatchError(auth.ErrPhoneTaken))
		})
	})

	Describe("Identifier namespaces", func() {
		It("rejects a phone number shaped like an email", func() {
			email, phone := "other@example.com", "victim@example.com"
			now := time.Now().UTC()
			err := env.Repo.Create(env.ctx, &auth.Credentials{
				Identity: auth.Identity{
					ID: ulid.Make(), Email: &email, PhoneNumber: &phone,
					Status: auth.StatusActive, CreatedAt: now, UpdatedAt: now,
				},
				PasswordHash: "$argon2id$placeholder",
			})
			Expect(err).To(HaveOccurred())
			Expect(auth.KindOf(err)).To(Equal(auth.KindInternal))
		})

		It("resolves an email identifier against the email column only", func() {
			creds := mustCredentials("victim@example.com", "5551112222")
			Expect(env.Repo.Create(env.ctx, creds)).To(Succeed())

			found, err := env.Repo.FindCredentialsByIdentifier(env.ctx, "victim@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(creds.ID))

			_, err = env.Repo.FindCredentialsByIdentifier(env.ctx, "5551112222@")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("Update", func() {
		It("applies a reset ticket and finds it until it expires", func() {
			creds := mustCredentials("carol@example.com", "")
			Expect(env.Repo.Create(env.ctx, creds)).To(Succeed())

			now := time.Now().UTC()
			ticket := &auth.ResetTicket{Hash: "ticket-hash", ExpiresAt: now.Add(time.Hour)}
			Expect(env.Repo.Update(env.ctx, creds.ID, auth.IdentityPatch{SetResetTicket: ticket})).To(Succeed())

			found, err := env.Repo.FindByResetTicket(env.ctx, "ticket-hash", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(creds.ID))

			_, err = env.Repo.FindByResetTicket(env.ctx, "ticket-hash", now.Add(2*time.Hour))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("applies a conditional write at most once", func() {
			creds := mustCredentials("dave@example.com", "")
			Expect(env.Repo.Create(env.ctx, creds)).To(Succeed())
			ticket := &auth.ResetTicket{Hash: "once", ExpiresAt: time.Now().Add(time.Hour)}
			Expect(env.Repo.Update(env.ctx, creds.ID, auth.IdentityPatch{SetResetTicket: ticket})).To(Succeed())

			digest := "$argon2id$new"
			redeem := auth.IdentityPatch{PasswordHash: &digest, ClearResetTicket: true, RequireResetTicketHash: "once"}
			Expect(env.Repo.Update(env.ctx, creds.ID, redeem)).To(Succeed())
			Expect(env.Repo.Update(env.ctx, creds.ID, redeem)).To(MatchError(auth.ErrNotFound))

			secret, err := env.Repo.FindCredentialsByID(env.ctx, creds.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(secret.PasswordHash).To(Equal(digest))
			Expect(secret.ResetTicketHash).To(BeNil())
		})

		It("refuses a conditional write once the ticket has expired", func() {
			creds := mustCredentials("erin@example.com", "")
			Expect(env.Repo.Create(env.ctx, creds)).To(Succeed())
			ticket := &auth.ResetTicket{Hash: "stale", ExpiresAt: time.Now().Add(-time.Minute)}
			Expect(env.Repo.Update(env.ctx, creds.ID, auth.IdentityPatch{SetResetTicket: ticket})).To(Succeed())

			digest := "$argon2id$new"
			redeem := auth.IdentityPatch{PasswordHash: &digest, ClearResetTicket: true, RequireResetTicketHash: "stale"}
			Expect(env.Repo.Update(env.ctx, creds.ID, redeem)).To(MatchError(auth.ErrNotFound))

			secret, err := env.Repo.FindCredentialsByID(env.ctx, creds.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(secret.PasswordHash).To(Equal("$argon2id$placeholder"))
		})

		It("reports a missing identity as not found", func() {
			cc := "+44"
			err := env.Repo.Update(env.ctx, ulid.Make(), auth.IdentityPatch{CountryCode: &cc})
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
