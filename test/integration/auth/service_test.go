// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package auth_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/cache"
)

var _ = Describe("Service", func() {
	BeforeEach(func() {
		env.reset()
	})

	It("runs a full session lifecycle", func() {
		reg, err := env.Service.Register(env.ctx, auth.RegisterInput{
			Email:    "erin@example.com",
			Password: "secret1",
		})
		Expect(err).NotTo(HaveOccurred())

		slot := cache.RefreshTokenKey(reg.Identity.ID.String())
		Expect(env.redis.Get(slot)).To(Equal(reg.Tokens.RefreshToken))

		login, err := env.Service.Login(env.ctx, "ERIN@example.com", "secret1")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.redis.Get(slot)).To(Equal(login.Tokens.RefreshToken))

		_, err = env.Service.Refresh(env.ctx, reg.Tokens.RefreshToken)
		Expect(err).To(MatchError(auth.ErrUnauthorized), "login supersedes the earlier session")

		rotated, err := env.Service.Refresh(env.ctx, login.Tokens.RefreshToken)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Service.Logout(env.ctx, reg.Identity.ID)).To(Succeed())
		Expect(env.redis.Exists(slot)).To(BeFalse())

		_, err = env.Service.Refresh(env.ctx, rotated.RefreshToken)
		Expect(err).To(MatchError(auth.ErrUnauthorized))
	})

	It("lets exactly one concurrent registration win", func() {
		const racers = 4
		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i := range racers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				_, errs[i] = env.Service.Register(env.ctx, auth.RegisterInput{
					Email:    "race@example.com",
					Password: fmt.Sprintf("secret-%d", i),
				})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			Expect(err).To(MatchError(auth.ErrEmailTaken))
		}
		Expect(wins).To(Equal(1))
	})

	It("resets a password with a single-use ticket", func() {
		reg, err := env.Service.Register(env.ctx, auth.RegisterInput{PhoneNumber: "5559876543", Password: "secret1"})
		Expect(err).NotTo(HaveOccurred())

		msg, err := env.Service.ForgotPassword(env.ctx, "5559876543")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).To(Equal(auth.MsgResetRequested))

		token := env.Notifier.last(reg.Identity.ID)
		Expect(token).NotTo(BeEmpty())

		_, err = env.Service.ResetPassword(env.ctx, token, "changed1")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.ResetPassword(env.ctx, token, "changed2")
		Expect(err).To(MatchError(auth.ErrInvalidResetTicket))

		_, err = env.Service.Login(env.ctx, "5559876543", "changed1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("serves profiles from the cache and invalidates on update", func() {
		reg, err := env.Service.Register(env.ctx, auth.RegisterInput{Email: "frank@example.com", Password: "secret1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Service.Profile(env.ctx, reg.Identity.ID)
		Expect(err).NotTo(HaveOccurred())
		key := cache.ProfileKey(reg.Identity.ID.String())
		Expect(env.redis.Exists(key)).To(BeTrue())

		cc := "+33"
		updated, err := env.Service.UpdateProfile(env.ctx, reg.Identity.ID, auth.ProfilePatch{CountryCode: &cc})
		Expect(err).NotTo(HaveOccurred())
		Expect(*updated.CountryCode).To(Equal("+33"))

		cached, ok := cache.GetJSON[auth.Identity](env.ctx, env.Cache, key)
		Expect(ok).To(BeTrue())
		Expect(*cached.CountryCode).To(Equal("+33"))
	})
})
