// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

//go:build integration

package credentials_test

import (
	"errors"
	"sync"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/mydex/mydex/internal/access"
	"github.com/mydex/mydex/internal/auth"
	"github.com/mydex/mydex/internal/store"
)

var _ = Describe("Authentication against PostgreSQL", func() {
	var aliceID int64

	BeforeEach(func() {
		env.resetData()
		aliceID = env.createAccount("alice", "hunter2")
	})

	It("authenticates the correct password", func() {
		identity, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "alice", Password: "hunter2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(identity).NotTo(BeNil())
		Expect(identity.ID).To(Equal(aliceID))
		Expect(identity.Name).To(Equal("alice"))
		Expect(identity.CreatedAt).NotTo(BeZero())
	})

	It("rejects a wrong password and an unknown account alike", func() {
		wrong, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "alice", Password: "hunter3"})
		Expect(err).NotTo(HaveOccurred())
		Expect(wrong).To(BeNil())

		unknown, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "nobody", Password: "hunter2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(unknown).To(BeNil())
	})

	It("matches names exactly", func() {
		identity, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "ALICE", Password: "hunter2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(identity).To(BeNil())
	})

	It("rehydrates the same identity by id", func() {
		authed, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "alice", Password: "hunter2"})
		Expect(err).NotTo(HaveOccurred())

		loaded, err := env.Auth.GetIdentity(env.ctx, aliceID)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Account).To(Equal(authed.Account))
		Expect(loaded.MatchesSecret(authed.SessionSecret())).To(BeTrue())
	})

	It("returns no identity for a missing id", func() {
		identity, err := env.Auth.GetIdentity(env.ctx, aliceID+1000)
		Expect(err).NotTo(HaveOccurred())
		Expect(identity).To(BeNil())

		_, err = env.Auth.RequireIdentity(env.ctx, aliceID+1000)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("invalidates the session binding when the password changes", func() {
		before, err := env.Auth.GetIdentity(env.ctx, aliceID)
		Expect(err).NotTo(HaveOccurred())
		binding := before.Binding()

		env.setPassword(aliceID, "correct horse battery staple")

		after, err := env.Auth.GetIdentity(env.ctx, aliceID)
		Expect(err).NotTo(HaveOccurred())
		Expect(after.MatchesSecret(binding.Secret)).To(BeFalse())

		old, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "alice", Password: "hunter2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(old).To(BeNil())
	})

	It("panics on a corrupt stored hash", func() {
		id := env.createAccountWithHash("mallory", "not-a-hash")

		Expect(func() { _, _ = env.Auth.GetIdentity(env.ctx, id) }).To(PanicWith(Satisfy(func(v any) bool {
			err, ok := v.(error)
			if !ok {
				return false
			}
			oopsErr, ok := oops.AsOops(err)
			return ok && oopsErr.Code() == auth.CodeCorruptCredential
		})))
	})

	It("verifies concurrent logins on the shared pool", func() {
		var wg sync.WaitGroup
		results := make([]*auth.Identity, 16)
		for i := range results {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				identity, err := env.Auth.Authenticate(env.ctx, auth.Credentials{Username: "alice", Password: "hunter2"})
				Expect(err).NotTo(HaveOccurred())
				results[i] = identity
			}()
		}
		wg.Wait()

		for _, identity := range results {
			Expect(identity).NotTo(BeNil())
			Expect(identity.ID).To(Equal(aliceID))
		}
	})
})

var _ = Describe("Group permissions against PostgreSQL", func() {
	var alice, bob, carol *auth.Identity

	load := func(id int64) *auth.Identity {
		identity, err := env.Auth.GetIdentity(env.ctx, id)
		Expect(err).NotTo(HaveOccurred())
		return identity
	}

	BeforeEach(func() {
		env.resetData()
		aliceID := env.createAccount("alice", "hunter2")
		bobID := env.createAccount("bob", "swordfish")
		carolID := env.createAccount("carol", "tr0ub4dor")

		admins := env.createGroup("admins", access.AddRole, access.RemoveRole)
		editors := env.createGroup("editors", access.AddRole, access.AddPokedexToOtherProfiles)
		env.createGroup("empty")

		env.addToGroup(aliceID, admins)
		env.addToGroup(bobID, admins)
		env.addToGroup(bobID, editors)

		alice, bob, carol = load(aliceID), load(bobID), load(carolID)
	})

	It("grants exactly the group's permissions", func() {
		perms, err := env.Access.PermissionsFor(env.ctx, alice)
		Expect(err).NotTo(HaveOccurred())
		Expect(perms.Sorted()).To(Equal([]access.Permission{access.AddRole, access.RemoveRole}))

		ok, err := env.Access.HasPermission(env.ctx, alice, access.RemoveRole)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = env.Access.HasPermission(env.ctx, alice, access.RemovePokedexFromOtherProfiles)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("unions and deduplicates across groups", func() {
		perms, err := env.Access.PermissionsFor(env.ctx, bob)
		Expect(err).NotTo(HaveOccurred())
		Expect(perms.Sorted()).To(Equal([]access.Permission{
			access.AddRole, access.RemoveRole, access.AddPokedexToOtherProfiles,
		}))
	})

	It("gives an account without groups nothing", func() {
		perms, err := env.Access.PermissionsFor(env.ctx, carol)
		Expect(err).NotTo(HaveOccurred())
		Expect(perms.Len()).To(BeZero())

		err = env.Access.Require(env.ctx, carol, access.AddRole)
		Expect(errors.Is(err, auth.ErrUnauthorized)).To(BeTrue())
		Expect(auth.UserMessage(err)).To(Equal("Unauthorized"))
	})

	It("agrees between HasPermission and PermissionsFor", func() {
		for _, identity := range []*auth.Identity{alice, bob, carol} {
			perms, err := env.Access.PermissionsFor(env.ctx, identity)
			Expect(err).NotTo(HaveOccurred())
			for _, p := range access.AllPermissions() {
				ok, err := env.Access.HasPermission(env.ctx, identity, p)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(Equal(perms.Has(p)), "%s %s", identity.Name, p)
			}
		}
	})

	It("rejects unknown permission names at the schema level", func() {
		_, err := env.pool.Exec(env.ctx,
			`INSERT INTO group_permissions (group_id, permission) SELECT id, 'launch_missiles' FROM groups LIMIT 1`)
		var pgErr *pgconn.PgError
		Expect(errors.As(err, &pgErr)).To(BeTrue())
		Expect(pgErr.Code).To(Equal(pgerrcode.CheckViolation))
	})
})

var _ = Describe("Schema migrations", Ordered, func() {
	It("reports the latest version with nothing pending", func() {
		migrator, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(Equal(uint(2)))

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})

	It("is idempotent", func() {
		migrator, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		Expect(migrator.Up()).To(Succeed())
	})
})
