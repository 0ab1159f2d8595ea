// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

//go:build integration

package plugin_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tollgate/tollgate/internal/archive"
	"github.com/tollgate/tollgate/internal/archive/archivetest"
	"github.com/tollgate/tollgate/internal/plugin"
	"github.com/tollgate/tollgate/internal/plugin/capability"
	"github.com/tollgate/tollgate/internal/plugin/hostfunc"
	pluginlua "github.com/tollgate/tollgate/internal/plugin/lua"
	"github.com/tollgate/tollgate/internal/plugin/proxy"
	"github.com/tollgate/tollgate/internal/realm"
	"github.com/tollgate/tollgate/pkg/ambient"
	"github.com/tollgate/tollgate/pkg/contract"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// moneyPlugin registers a plugin whose charge reports the money module it
// resolved and the realm it ran in.
const moneyPlugin = `
local contract = require("tollgate.contract")
local host = require("tollgate.host")
local charge = require("tollgate.capability.charge")
local money = require("money")

contract.register{
    id = "%s",
    vendor_id = "%s",
    method_id = "card",
    capabilities = {
        [charge.name] = {
            charge = function(req)
                if req.amount.amount == "0" then
                    contract.raise{ internal = "zero charge", external = "Invalid amount" }
                end
                local realm = host.current_realm()
                return { data = { money = money.VERSION, realm = realm } }
            end,
        },
    },
}
`

func bundle(id, dep string) archivetest.Files {
	return archivetest.Files{
		plugin.ManifestFile: "name: " + id + "\nversion: 1.0.0\ncontract: \"^1.0.0\"\ndependencies:\n  - " + dep + "\n",
		"main.lua":          fmt.Sprintf(moneyPlugin, id, id),
	}
}

var _ = Describe("Plugin isolation end to end", func() {
	var (
		ctx      context.Context
		agg      *archive.Aggregate
		manager  *plugin.Manager
		registry *plugin.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		path := archivetest.WriteAggregate(GinkgoT(), GinkgoT().TempDir(), map[string]archivetest.Files{
			"plugins/stripe.zip": bundle("stripe", "nested:lib/money-1.zip"),
			"plugins/adyen.zip":  bundle("adyen", "nested:lib/money-2.zip"),
			"plugins/broken.zip": bundle("broken", "nested:lib/missing.zip"),
			"lib/money-1.zip":    {"money.lua": `return { VERSION = "1" }`},
			"lib/money-2.zip":    {"money.lua": `return { VERSION = "2" }`},
		})

		var err error
		agg, err = archive.OpenAggregate(path)
		Expect(err).NotTo(HaveOccurred())

		enforcer := capability.NewEnforcer()
		Expect(enforcer.SetDefaultGrants([]string{"tollgate.capability.*"})).To(Succeed())
		ns, err := pluginlua.NewNamespace(hostfunc.New(hostfunc.NewMemoryKV(), enforcer))
		Expect(err).NotTo(HaveOccurred())

		registry = plugin.NewRegistry(
			plugin.NewAggregateSource(agg, "", nil),
			realm.NewFactory(archive.NewResolver(agg), ns),
			pluginlua.NewHost(),
		)
		manager = plugin.NewManager(registry, capability.NewResolver(enforcer))
	})

	AfterEach(func() {
		Expect(manager.Close()).To(Succeed())
		Expect(agg.Close()).To(Succeed())
	})

	charge := func(id, amount string) (*contract.CapabilityResponse, error) {
		p, err := manager.Plugin(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		handle, ok, err := manager.ResolveCapability(ctx, p, contract.CapabilityCharge)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		c, ok := handle.(contract.ChargeCapability)
		Expect(ok).To(BeTrue())
		return c.Charge(ctx, contract.ChargeRequest{Amount: contract.Money{Amount: amount, CurrencyCode: "EUR"}})
	}

	Describe("loading", func() {
		It("loads every bundle whose realm resolves", func() {
			ids, err := manager.ListPlugins(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"adyen", "stripe"}))
			Expect(manager.Ready()).To(BeTrue())
		})

		It("records bundles with a missing nested dependency", func() {
			loaded, err := manager.Loaded(ctx)
			Expect(err).NotTo(HaveOccurred())
			failures := loaded.Failures()
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].Bundle.Name()).To(Equal("broken"))
			Expect(failures[0].Reason).To(Equal(plugin.ReasonRealm))
			errutil.AssertFailure(GinkgoT(), failures[0].Err, archive.ErrBundleEntryNotFound, "BUNDLE_ENTRY_NOT_FOUND")
		})

		It("returns the identical plugin map on every call", func() {
			first, err := manager.LoadPlugins(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := manager.LoadPlugins(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second["stripe"]).To(BeIdenticalTo(first["stripe"]))
			Expect(proxy.IsProxied(first["stripe"])).To(BeTrue())
		})
	})

	Describe("invocation", func() {
		It("resolves each plugin's own copy of a shared module name", func() {
			resp, err := charge("stripe", "10.00")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Data).To(HaveKeyWithValue("money", "1"))
			Expect(resp.Data).To(HaveKeyWithValue("realm", "stripe"))

			resp, err = charge("adyen", "10.00")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Data).To(HaveKeyWithValue("money", "2"))
			Expect(resp.Data).To(HaveKeyWithValue("realm", "adyen"))
		})

		It("restores the host realm after a call", func() {
			_, err := charge("stripe", "10.00")
			Expect(err).NotTo(HaveOccurred())
			Expect(ambient.RealmFrom(ctx)).To(Equal(ambient.Host))
		})

		It("passes capability failures through unchanged", func() {
			_, err := charge("stripe", "0")
			var failure *contract.CapabilityFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.InternalMessage).To(Equal("zero charge"))
			Expect(failure.ExternalMessage).To(Equal("Invalid amount"))
		})

		It("serves concurrent calls across realms", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				id := "stripe"
				want := "1"
				if i%2 == 1 {
					id, want = "adyen", "2"
				}
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					resp, err := charge(id, "5.00")
					Expect(err).NotTo(HaveOccurred())
					Expect(resp.Data).To(HaveKeyWithValue("money", want))
					Expect(resp.Data).To(HaveKeyWithValue("realm", id))
				}()
			}
			wg.Wait()
		})
	})
})
