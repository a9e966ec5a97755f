package order

import (
	"math"
	"testing"
	"time"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testOrder() *Order {
	n := 0
	return New(types.DefaultPolicy(),
		WithClock(func() time.Time { return fixedNow }),
		WithOrderNumbers(func(now time.Time) string {
			n++
			return "FO-" + now.Format("20060102") + "-" + string(rune('A'+n-1))
		}),
	)
}

var (
	ftthAddress = &types.Address{
		Street: "Hauptstrasse", HouseNumber: "5", City: "Kiel",
		ConnectionType: types.ConnectionFTTH, BuildingID: "B-1", CableTVAvailable: true,
	}
	einfach = &types.Tariff{
		ID: "einfach-250", Name: "Einfach 250", Family: "einfach",
		MonthlyCents: 4990, SetupFeeCents: 9900, ContractMonths: 24,
	}
	fiberBasic = &types.Tariff{
		ID: "basic-100", Name: "FiberBasic 100", Family: "fiberbasic",
		MonthlyCents: 3490, Monthly12Cents: ptr(3990), SetupFeeCents: 9900, ContractMonths: 24,
	}
	phoneTariff = &types.Tariff{
		ID: "komplett-500", Name: "Komplett 500", Family: "komplett",
		MonthlyCents: 5990, SetupFeeCents: 9900, IncludesPhone: true,
	}
)

func catalogFor(tariffID string) *types.Eligibility {
	return &types.Eligibility{
		TariffID:     tariffID,
		BuildingID:   "B-1",
		CustomerType: types.CustomerPrivate,
		Routers: []types.Addon{
			{ID: "fritzbox-5590", Name: "FRITZ!Box 5590", Category: types.CategoryRouter, MonthlyCents: 999, DiscountedCents: ptr(599), FTTH: true},
			{ID: "fritzbox-7590", Name: "FRITZ!Box 7590", Category: types.CategoryRouter, MonthlyCents: 699, FTTB: true},
		},
		TVOptions: []types.Addon{
			{ID: "cable-basic", Category: types.CategoryTV, MonthlyCents: 900, CableBased: true},
			{ID: "stream-m", Category: types.CategoryTV, MonthlyCents: 1000},
			{ID: "hd", Category: types.CategoryTVAddon, MonthlyCents: 300},
			{ID: "receiver", Category: types.CategoryTVHardware, MonthlyCents: 200, OneTimeCents: 1900},
			{ID: "stick", Category: types.CategoryTVStick, OneTimeCents: 3990},
		},
		PhoneOptions:        []types.Addon{{ID: "voip", Name: "Phone line", Category: types.CategoryPhone, MonthlyCents: 299}},
		ServiceOptions:      []types.Addon{{ID: "mesh", Category: types.CategoryService, MonthlyCents: 250}},
		InstallationOptions: []types.Addon{{ID: "install", Category: types.CategoryInstallation, OneTimeCents: 4900}},
		ExpressOptions:      []types.Addon{{ID: "express-48h", Category: types.CategoryExpress, OneTimeCents: 1990}},
	}
}

// readyOrder is at step 2 with an einfach tariff and its catalog answer.
func readyOrder(t *testing.T) *Order {
	t.Helper()
	o := testOrder()
	o.SetAddress(ftthAddress)
	_, ok := o.SetStep(types.StepTariff)
	require.True(t, ok)
	o.SetTariff(einfach)
	o.ApplyEligibility(catalogFor(einfach.ID))
	return o
}

func confirm(t *testing.T, o *Order) string {
	t.Helper()
	o.SetCustomerData(&types.Person{FirstName: "Ada", LastName: "Lovelace"})
	o.SetBankData(&types.BankData{AccountHolder: "Ada Lovelace", IBAN: "DE02120300000000202051"})
	num, err := o.GenerateOrderNumber()
	require.NoError(t, err)
	return num
}

func TestNew_EmptyAtStepOne(t *testing.T) {
	o := testOrder()
	s := o.Snapshot()
	assert.Equal(t, types.StepAddress, s.Step)
	assert.Equal(t, types.RouterNotSelected, s.Configuration.Router.Kind)
	assert.Equal(t, 24, s.Configuration.ContractMonths)
	assert.Equal(t, types.ReferralNone, s.Configuration.Referral.Type)
}

func TestCanNavigateToStep_Gates(t *testing.T) {
	o := testOrder()
	assert.True(t, o.CanNavigateToStep(1))
	assert.False(t, o.CanNavigateToStep(2))
	assert.False(t, o.CanNavigateToStep(3))
	assert.False(t, o.CanNavigateToStep(4))
	assert.False(t, o.CanNavigateToStep(5))

	o.SetAddress(&types.Address{Street: "Feldweg", ConnectionType: types.ConnectionNotConnected})
	assert.False(t, o.CanNavigateToStep(2))

	o.SetAddress(ftthAddress)
	assert.True(t, o.CanNavigateToStep(2))

	o.SetTariff(einfach)
	assert.True(t, o.CanNavigateToStep(3))

	o.SetCustomerData(&types.Person{FirstName: "Ada", LastName: "Lovelace"})
	assert.False(t, o.CanNavigateToStep(4))
	o.SetBankData(&types.BankData{AccountHolder: "Ada", IBAN: "DE00"})
	assert.True(t, o.CanNavigateToStep(4))
}

func TestSetStep_FailingGateIsNoop(t *testing.T) {
	o := testOrder()
	res, ok := o.SetStep(types.StepTariff)
	assert.False(t, ok)
	assert.Empty(t, res.Cleared)
	assert.Equal(t, types.StepAddress, o.Step())

	_, ok = o.SetStep(0)
	assert.False(t, ok)
	assert.Equal(t, types.StepAddress, o.Step())
}

func TestSetStep_BackToTariffResetsSelectionKeepsPersonalData(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	o.SetTV(TVInput{PackageID: "stream-m", StreamingStick: true})
	o.SetAddons([]AddonInput{{ID: "mesh", Quantity: 2}})
	o.SetExpressActivation(true, "")
	num := confirm(t, o)
	birth := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	o.SetPreferredDate(&birth)
	o.SetApartment(&types.Apartment{Floor: "2", Position: "left"})
	_, ok := o.SetStep(types.StepCustomer)
	require.True(t, ok)
	_, ok = o.SetStep(types.StepReview)
	require.True(t, ok)

	res, ok := o.SetStep(types.StepTariff)
	require.True(t, ok)

	s := o.Snapshot()
	assert.Equal(t, types.StepTariff, s.Step)
	assert.True(t, res.Invalidated)
	assert.Equal(t, num, res.RevokedOrderNumber)
	assert.False(t, s.Confirmation.Confirmed())
	assert.Equal(t, einfach.ID, s.Configuration.Tariff.ID)
	assert.Equal(t, types.RouterNotSelected, s.Configuration.Router.Kind)
	assert.Nil(t, s.Configuration.TV.Package)
	assert.Empty(t, s.Configuration.Addons)
	assert.False(t, s.Configuration.Express.Enabled)

	assert.True(t, s.Customer.Present())
	assert.True(t, s.Bank.Present())
	require.NotNil(t, s.PreferredDate)
	assert.True(t, birth.Equal(*s.PreferredDate))
	assert.Equal(t, "2", s.Apartment.Floor)
}

func TestSetStep_BackToCustomerKeepsSelection(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	num := confirm(t, o)
	_, _ = o.SetStep(types.StepCustomer)
	_, _ = o.SetStep(types.StepReview)

	res, ok := o.SetStep(types.StepCustomer)
	require.True(t, ok)
	assert.False(t, res.Invalidated)
	s := o.Snapshot()
	assert.Equal(t, "fritzbox-5590", s.Configuration.Router.ID())
	assert.Equal(t, num, s.Confirmation.OrderNumber)
}

func TestSetRouter_OnlyEligibleMembers(t *testing.T) {
	o := readyOrder(t)

	res := o.SetRouter("fritzbox-7590") // FTTB only
	assert.False(t, res.Invalidated)
	assert.Equal(t, types.RouterNotSelected, o.Snapshot().Configuration.Router.Kind)

	o.SetRouter("fritzbox-5590")
	assert.Equal(t, "fritzbox-5590", o.Snapshot().Configuration.Router.ID())

	o.SetRouter(types.NoRouterID)
	assert.Equal(t, types.RouterNone, o.Snapshot().Configuration.Router.Kind)
}

func TestSetRouter_HiddenSelectorRejectsNoRouter(t *testing.T) {
	o := readyOrder(t)
	e := catalogFor(einfach.ID)
	e.Routers = e.Routers[1:] // FTTB router only
	o.ApplyEligibility(e)

	assert.False(t, o.Options().RouterSelectorVisible)
	o.SetRouter(types.NoRouterID)
	assert.Equal(t, types.RouterNotSelected, o.Snapshot().Configuration.Router.Kind)
}

func TestSetRouter_SameRouterStillInvalidates(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	num := confirm(t, o)

	res := o.SetRouter("fritzbox-5590")
	assert.True(t, res.Invalidated)
	assert.Equal(t, num, res.RevokedOrderNumber)
	assert.Empty(t, o.Snapshot().Confirmation.OrderNumber)
}

func TestCustomerDataKeepsConfirmation(t *testing.T) {
	o := readyOrder(t)
	num := confirm(t, o)

	res := o.SetCustomerData(&types.Person{FirstName: "Grace", LastName: "Hopper"})
	assert.False(t, res.Invalidated)
	o.SetBankData(&types.BankData{AccountHolder: "Grace Hopper", IBAN: "DE89370400440532013000"})
	o.SetConsents(types.Consents{Terms: true, Privacy: true})
	o.SetAlternatePayer(&types.Person{FirstName: "Alan", LastName: "Turing"})
	o.SetProviderCancellation(&types.ProviderCancellation{PreviousProvider: "OldNet", CancelOnBehalf: true})

	assert.Equal(t, num, o.Snapshot().Confirmation.OrderNumber)
}

func TestGenerateOrderNumber(t *testing.T) {
	o := readyOrder(t)
	_, err := o.GenerateOrderNumber()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "customer data")

	num := confirm(t, o)
	assert.Equal(t, "FO-20260314-A", num)

	again, err := o.GenerateOrderNumber()
	require.NoError(t, err)
	assert.Equal(t, num, again)

	o.SetContractDuration(24)
	assert.False(t, o.Snapshot().Confirmation.Confirmed())
	renewed, err := o.GenerateOrderNumber()
	require.NoError(t, err)
	assert.Equal(t, "FO-20260314-B", renewed)
	assert.Equal(t, fixedNow, *o.Snapshot().Confirmation.ConfirmedAt)
}

func TestNewOrderNumber_Format(t *testing.T) {
	assert.Regexp(t, `^FO-20260314-[0-9A-F]{8}$`, NewOrderNumber(fixedNow))
}

func TestSetTariff_BundledPhoneResetsPhone(t *testing.T) {
	o := readyOrder(t)
	o.SetPhone(PhoneInput{Enabled: true, OptionID: "voip", Lines: 3})
	require.True(t, o.Snapshot().Configuration.Phone.Enabled)
	assert.Equal(t, int64(299*3), o.Quote().Monthly.PhoneCents)

	res := o.SetTariff(phoneTariff)
	assert.Contains(t, res.Cleared, cascade.FieldPhone)
	assert.False(t, o.Snapshot().Configuration.Phone.Enabled)

	o.ApplyEligibility(catalogFor(phoneTariff.ID))
	o.SetPhone(PhoneInput{Enabled: true, OptionID: "voip", Lines: 2})
	assert.False(t, o.Snapshot().Configuration.Phone.Enabled)
}

func TestSetPhone_ClampsLinesAndUsesOptionPrice(t *testing.T) {
	o := readyOrder(t)
	o.SetPhone(PhoneInput{Enabled: true, OptionID: "voip", Lines: 25})
	ph := o.Snapshot().Configuration.Phone
	assert.Equal(t, types.MaxPhoneLines, ph.Lines)
	assert.Equal(t, int64(299), ph.UnitPriceCents)

	o.SetPhone(PhoneInput{Enabled: true, OptionID: "voip", Lines: 0})
	assert.Equal(t, types.MinPhoneLines, o.Snapshot().Configuration.Phone.Lines)

	o.SetPhone(PhoneInput{Enabled: true, OptionID: "unknown"})
	assert.False(t, o.Snapshot().Configuration.Phone.Enabled)
}

func TestSetContractDuration_TwelveOnlyForEligibleFamily(t *testing.T) {
	o := readyOrder(t)
	o.SetContractDuration(12)
	assert.Equal(t, 24, o.Snapshot().Configuration.ContractMonths)

	o.SetTariff(fiberBasic)
	o.SetContractDuration(12)
	assert.Equal(t, 12, o.Snapshot().Configuration.ContractMonths)
	assert.Equal(t, int64(3990), o.Quote().Monthly.TariffCents)

	o.SetContractDuration(36)
	assert.Equal(t, 12, o.Snapshot().Configuration.ContractMonths)

	o.SetTariff(einfach)
	assert.Equal(t, 24, o.Snapshot().Configuration.ContractMonths)
}

func TestSetTariff_KeepsSelectionsTheNewCatalogOffers(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	o.SetTV(TVInput{PackageID: "cable-basic", HDAddonID: "hd"})
	o.SetAddons([]AddonInput{{ID: "mesh"}, {ID: "install"}})
	require.Equal(t, types.TVCable, o.Snapshot().Configuration.TV.Type)

	res := o.SetTariff(fiberBasic)
	s := o.Snapshot()
	assert.Nil(t, s.Eligibility)
	assert.Contains(t, res.Cleared, cascade.FieldEligibility)
	assert.NotContains(t, res.Cleared, cascade.FieldRouter)
	assert.NotContains(t, res.Cleared, cascade.FieldTV)
	assert.Equal(t, "fritzbox-5590", s.Configuration.Router.ID())
	require.NotNil(t, s.Configuration.TV.Package)

	o.ApplyEligibility(catalogFor(einfach.ID))
	assert.Nil(t, o.Snapshot().Eligibility, "answer for the previous tariff is ignored")

	next := catalogFor(fiberBasic.ID)
	next.TVOptions = next.TVOptions[1:]
	next.ServiceOptions = nil
	res = o.ApplyEligibility(next)

	s = o.Snapshot()
	assert.Equal(t, "fritzbox-5590", s.Configuration.Router.ID())
	assert.Nil(t, s.Configuration.TV.Package)
	require.Len(t, s.Configuration.Addons, 1)
	assert.Equal(t, "install", s.Configuration.Addons[0].Addon.ID)
	assert.ElementsMatch(t, []string{cascade.FieldTV, cascade.FieldAddons}, res.Cleared)
}

func TestSetCustomerType_KeepsSelectionsTheNewCatalogOffers(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	o.SetTV(TVInput{PackageID: "stream-m"})

	o.SetCustomerType(types.CustomerBusiness)
	s := o.Snapshot()
	assert.Nil(t, s.Eligibility)
	assert.Equal(t, "fritzbox-5590", s.Configuration.Router.ID())

	business := catalogFor(einfach.ID)
	business.CustomerType = types.CustomerBusiness
	business.TVOptions = nil
	res := o.ApplyEligibility(business)

	s = o.Snapshot()
	assert.Equal(t, "fritzbox-5590", s.Configuration.Router.ID())
	assert.Nil(t, s.Configuration.TV.Package)
	assert.Equal(t, []string{cascade.FieldTV}, res.Cleared)
}

func TestCatalogAnswers_RevokeOnlyWhenConfigurationChanges(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	num := confirm(t, o)

	res := o.ApplyEligibility(catalogFor(einfach.ID))
	assert.False(t, res.Invalidated)
	res = o.ApplyPromotions(nil)
	assert.False(t, res.Invalidated)
	assert.Equal(t, num, o.Snapshot().Confirmation.OrderNumber)

	repriced := catalogFor(einfach.ID)
	repriced.Routers[0].MonthlyCents = 1099
	res = o.ApplyEligibility(repriced)
	assert.True(t, res.Invalidated)
	assert.Equal(t, num, res.RevokedOrderNumber)
	assert.Equal(t, int64(1099), o.Snapshot().Configuration.Router.Router.MonthlyCents)

	num = confirm(t, o)
	res = o.ApplyPromotions([]types.Promotion{{ID: "opening", SetupFeeWaived: true}})
	assert.True(t, res.Invalidated)
	assert.Equal(t, num, res.RevokedOrderNumber)
}

func TestSetAddons_ClampsQuantity(t *testing.T) {
	o := readyOrder(t)
	before := o.Quote().Monthly.TotalCents

	o.SetAddons([]AddonInput{{ID: "mesh", Quantity: math.MaxInt / 3}, {ID: "install", Quantity: -4}})

	cfg := o.Snapshot().Configuration
	require.Len(t, cfg.Addons, 2)
	assert.Equal(t, types.MaxAddonQuantity, cfg.Addons[0].Quantity)
	assert.Equal(t, 1, cfg.Addons[1].Quantity)
	assert.Equal(t, before+250*types.MaxAddonQuantity, o.Quote().Monthly.TotalCents)
}

func TestSetAddress_ReplacedAddressSwitchesRouterSet(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")

	other := *ftthAddress
	other.ConnectionType = types.ConnectionNotConnected
	o.SetAddress(&other)

	s := o.Snapshot()
	assert.Equal(t, types.RouterNotSelected, s.Configuration.Router.Kind)
	require.NotNil(t, s.Eligibility, "same building keeps its catalog answer")
	assert.Equal(t, []string{"fritzbox-7590"}, routerIDs(o))
}

func routerIDs(o *Order) []string {
	var ids []string
	for _, r := range o.Options().Routers {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestSetTV_CableNeedsFTTHAndCableFlag(t *testing.T) {
	o := readyOrder(t)
	addr := *ftthAddress
	addr.CableTVAvailable = false
	o.SetAddress(&addr)

	o.SetTV(TVInput{PackageID: "cable-basic"})
	assert.Nil(t, o.Snapshot().Configuration.TV.Package)

	o.SetTV(TVInput{PackageID: "stream-m", HardwareIDs: []string{"receiver", "bogus"}, StreamingStick: true})
	tv := o.Snapshot().Configuration.TV
	assert.Equal(t, types.TVStreaming, tv.Type)
	assert.Len(t, tv.Hardware, 1)
	assert.True(t, tv.StreamingStick)
	assert.Equal(t, int64(3990), tv.StickPriceCents)
}

func TestPromoCodeAndReferralAreExclusive(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")

	o.ApplyPromoCode(&types.PromoCode{Code: "ROUTER2", RouterDiscountCents: 200})
	s := o.Snapshot()
	require.NotNil(t, s.Configuration.PromoCode)
	assert.Equal(t, types.ReferralPromoCode, s.Configuration.Referral.Type)
	assert.Equal(t, int64(5389), o.Quote().Monthly.TotalCents)

	o.SetReferralType(types.ReferralCustomer, "K-100")
	o.ApplyReferralValidation("K-100", true)
	s = o.Snapshot()
	assert.Nil(t, s.Configuration.PromoCode)
	assert.True(t, s.Configuration.Referral.Validated)
	assert.Equal(t, int64(4900), o.Quote().OneTime.TotalCents)

	o.ApplyPromoCode(&types.PromoCode{Code: "ROUTER2", RouterDiscountCents: 200})
	s = o.Snapshot()
	assert.NotNil(t, s.Configuration.PromoCode)
	assert.False(t, s.Configuration.Referral.Validated)
	assert.Equal(t, int64(9900), o.Quote().OneTime.TotalCents)
}

func TestRejectedPromoCodeKeepsPricesAndConfirmation(t *testing.T) {
	o := readyOrder(t)
	num := confirm(t, o)
	before := o.Quote()

	res := o.ApplyPromoCode(&types.PromoCode{Code: "ELSEWHERE", ValidAddresses: []string{"Bahnhof"}})
	assert.Equal(t, cascade.PromoCodeRejected, res.Mutation)
	s := o.Snapshot()
	assert.Nil(t, s.Configuration.PromoCode)
	assert.Equal(t, MsgPromoCodeWrongAddress, s.Configuration.PromoCodeError)
	assert.Equal(t, before, o.Quote())
	assert.Equal(t, num, s.Confirmation.OrderNumber)
}

func TestReferralValidation_StaleAndInvalid(t *testing.T) {
	o := readyOrder(t)
	o.SetReferralType(types.ReferralCustomer, "K-2")

	res := o.ApplyReferralValidation("K-1", true)
	assert.Empty(t, res.Cleared)
	assert.False(t, o.Snapshot().Configuration.Referral.Validated)

	o.ApplyReferralValidation("K-2", false)
	ref := o.Snapshot().Configuration.Referral
	assert.Equal(t, types.ReferralCustomer, ref.Type)
	assert.Equal(t, MsgReferrerNotFound, ref.Error)
	assert.Zero(t, o.Quote().OneTime.ReferralBonusCents)
}

func TestSnapshotIsIsolated(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	snap := o.Snapshot()
	snap.Configuration.Router.Router.MonthlyCents = 1
	snap.Eligibility.Routers[0].MonthlyCents = 1

	assert.Equal(t, int64(999), o.Snapshot().Configuration.Router.Router.MonthlyCents)
	assert.Equal(t, int64(999), o.Snapshot().Eligibility.Routers[0].MonthlyCents)
}

func TestSummary_ItemizesConfirmedOrder(t *testing.T) {
	o := readyOrder(t)
	o.SetRouter("fritzbox-5590")
	o.SetAddons([]AddonInput{{ID: "install"}, {ID: "install", Quantity: 5}, {ID: "ghost"}})
	o.ApplyPromoCode(&types.PromoCode{Code: "ROUTER2", RouterDiscountCents: 200})
	num := confirm(t, o)

	sum := o.Summary()
	assert.Equal(t, num, sum.OrderNumber)
	assert.True(t, sum.Confirmed)
	assert.Equal(t, fixedNow, sum.GeneratedAt)
	assert.Equal(t, types.EUR(5389), sum.Monthly)
	assert.Equal(t, types.EUR(9900+4900), sum.OneTime)

	kinds := map[string]Line{}
	for _, l := range sum.Lines {
		kinds[l.Kind] = l
	}
	assert.Equal(t, int64(399), kinds[LineRouter].MonthlyCents)
	assert.Equal(t, int64(600), kinds[LineRouter].SavingsMonthly)
	assert.Equal(t, int64(1), kinds[LineAddon].Quantity)
	assert.Equal(t, int64(9900), kinds[LineSetupFee].OneTimeCents)
}

func TestReset(t *testing.T) {
	o := readyOrder(t)
	confirm(t, o)
	o.Reset()
	assert.Equal(t, types.NewOrderState(), o.Snapshot())
}
