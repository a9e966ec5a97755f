package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/fiberorder/internal/types"
)

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS addresses (
		key TEXT PRIMARY KEY,
		street TEXT NOT NULL,
		house_number TEXT NOT NULL,
		postal_code TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		connection_type TEXT NOT NULL,
		building_id TEXT NOT NULL DEFAULT '',
		residential_units INTEGER NOT NULL DEFAULT 0,
		cable_tv_available INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tariffs (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		monthly_cents INTEGER NOT NULL,
		monthly12_cents INTEGER,
		setup_fee_cents INTEGER NOT NULL,
		contract_months INTEGER NOT NULL,
		includes_phone INTEGER NOT NULL DEFAULT 0,
		family TEXT NOT NULL DEFAULT '',
		customer_types TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS addons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		monthly_cents INTEGER NOT NULL,
		one_time_cents INTEGER NOT NULL,
		discounted_cents INTEGER,
		ftth INTEGER NOT NULL DEFAULT 0,
		fttb INTEGER NOT NULL DEFAULT 0,
		cable_based INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tariff_addons (
		tariff_id TEXT NOT NULL REFERENCES tariffs(id),
		addon_id TEXT NOT NULL REFERENCES addons(id),
		building_id TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		PRIMARY KEY (tariff_id, addon_id, building_id)
	)`,
	`CREATE TABLE IF NOT EXISTS promotions (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		scope TEXT NOT NULL,
		router_id TEXT NOT NULL DEFAULT '',
		router_monthly_discount_cents INTEGER NOT NULL DEFAULT 0,
		router_one_time_discount_cents INTEGER NOT NULL DEFAULT 0,
		setup_fee_waived INTEGER NOT NULL DEFAULT 0,
		street TEXT NOT NULL DEFAULT '',
		building_id TEXT NOT NULL DEFAULT '',
		tariff_ids TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS promo_codes (
		key TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		valid_addresses TEXT NOT NULL DEFAULT '[]',
		router_discount_cents INTEGER NOT NULL DEFAULT 0,
		router_one_time_discount_cents INTEGER NOT NULL DEFAULT 0,
		setup_fee_waived INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS referrers (
		customer_number TEXT PRIMARY KEY
	)`,
}

// SQLStore is a Provider backed by SQLite through ent's SQL builder.
type SQLStore struct {
	drv *entsql.Driver
}

// NewSQLStore creates a catalog store on drv. Call Migrate before use.
func NewSQLStore(drv *entsql.Driver) *SQLStore {
	return &SQLStore{drv: drv}
}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.SQLite) }

// Migrate creates the catalog tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
			return fmt.Errorf("migrate catalog: %w", err)
		}
	}
	return nil
}

// Load replaces the stored catalog with c in one transaction.
func (s *SQLStore) Load(ctx context.Context, c *Catalog) (err error) {
	if err := c.Check(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exec := func(q string, args []any) error {
		return tx.Exec(ctx, q, args, nil)
	}
	for _, table := range []string{"tariff_addons", "promotions", "promo_codes", "referrers", "addresses", "tariffs", "addons"} {
		q, args := builder().Delete(table).Query()
		if err = exec(q, args); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, stmt := range loadStatements(c) {
		q, args := stmt.Query()
		if err = exec(q, args); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
	}
	return tx.Commit()
}

func loadStatements(c *Catalog) []*entsql.InsertBuilder {
	upsert := func(table string, key string, cols ...string) *entsql.InsertBuilder {
		return builder().Insert(table).Columns(cols...).
			OnConflict(entsql.ConflictColumns(key), entsql.ResolveWithNewValues())
	}
	var stmts []*entsql.InsertBuilder

	if len(c.Addresses) > 0 {
		ins := upsert("addresses", "key", "key", "street", "house_number", "postal_code", "city",
			"connection_type", "building_id", "residential_units", "cable_tv_available")
		for _, a := range c.Addresses {
			ins.Values(AddressKey(a.Street, a.HouseNumber, a.City), a.Street, a.HouseNumber, a.PostalCode, a.City,
				string(a.ConnectionType), a.BuildingID, a.ResidentialUnits, a.CableTVAvailable)
		}
		stmts = append(stmts, ins)
	}
	if len(c.Addons) > 0 {
		ins := upsert("addons", "id", "id", "name", "category", "monthly_cents", "one_time_cents",
			"discounted_cents", "ftth", "fttb", "cable_based")
		for _, a := range c.Addons {
			ins.Values(a.ID, a.Name, string(a.Category), a.MonthlyCents, a.OneTimeCents,
				nullable(a.DiscountedCents), a.FTTH, a.FTTB, a.CableBased)
		}
		stmts = append(stmts, ins)
	}
	if len(c.Tariffs) > 0 {
		ins := upsert("tariffs", "id", "id", "position", "name", "monthly_cents", "monthly12_cents",
			"setup_fee_cents", "contract_months", "includes_phone", "family", "customer_types")
		links := builder().Insert("tariff_addons").Columns("tariff_id", "addon_id", "building_id", "position").
			OnConflict(entsql.DoNothing())
		nlinks := 0
		for i, t := range c.Tariffs {
			ins.Values(t.ID, i, t.Name, t.MonthlyCents, nullable(t.Monthly12Cents),
				t.SetupFeeCents, t.ContractMonths, t.IncludesPhone, t.Family, jsonList(t.CustomerTypes))
			for j, as := range t.Addons {
				links.Values(t.ID, as.AddonID, as.BuildingID, j)
				nlinks++
			}
		}
		stmts = append(stmts, ins)
		if nlinks > 0 {
			stmts = append(stmts, links)
		}
	}
	if len(c.Promotions) > 0 {
		ins := upsert("promotions", "id", "id", "position", "name", "scope", "router_id",
			"router_monthly_discount_cents", "router_one_time_discount_cents", "setup_fee_waived",
			"street", "building_id", "tariff_ids")
		for i, p := range c.Promotions {
			ins.Values(p.ID, i, p.Name, string(p.Scope), p.RouterID,
				p.RouterMonthlyDiscountCents, p.RouterOneTimeDiscountCents, p.SetupFeeWaived,
				p.Street, p.BuildingID, jsonList(p.TariffIDs))
		}
		stmts = append(stmts, ins)
	}
	if len(c.PromoCodes) > 0 {
		ins := upsert("promo_codes", "key", "key", "code", "valid_addresses", "router_discount_cents",
			"router_one_time_discount_cents", "setup_fee_waived", "description")
		for _, pc := range c.PromoCodes {
			ins.Values(NormalizeCode(pc.Code), pc.Code, jsonList(pc.ValidAddresses), pc.RouterDiscountCents,
				pc.RouterOneTimeDiscountCents, pc.SetupFeeWaived, pc.Description)
		}
		stmts = append(stmts, ins)
	}
	if len(c.Referrers) > 0 {
		ins := builder().Insert("referrers").Columns("customer_number").OnConflict(entsql.DoNothing())
		for _, r := range c.Referrers {
			ins.Values(r)
		}
		stmts = append(stmts, ins)
	}
	return stmts
}

func nullable(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func jsonList[T any](in []T) string {
	if len(in) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(in)
	return string(b)
}

func parseList[T any](s string) ([]T, error) {
	var out []T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// each runs sel and calls scan for every row.
func (s *SQLStore) each(ctx context.Context, sel *entsql.Selector, scan func(rows *entsql.Rows) error) error {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLStore) LookupAddress(ctx context.Context, street, houseNumber, city string, _ types.CustomerType) (*types.Address, error) {
	t := builder().Table("addresses")
	sel := builder().Select(t.C("street"), t.C("house_number"), t.C("postal_code"), t.C("city"),
		t.C("connection_type"), t.C("building_id"), t.C("residential_units"), t.C("cable_tv_available")).
		From(t).
		Where(entsql.EQ(t.C("key"), AddressKey(street, houseNumber, city)))

	var found *types.Address
	err := s.each(ctx, sel, func(rows *entsql.Rows) error {
		var a types.Address
		var conn string
		if err := rows.Scan(&a.Street, &a.HouseNumber, &a.PostalCode, &a.City, &conn,
			&a.BuildingID, &a.ResidentialUnits, &a.CableTVAvailable); err != nil {
			return err
		}
		a.ConnectionType = types.ConnectionType(conn)
		found = &a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup address: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("address %s %s, %s: %w", street, houseNumber, city, ErrNotFound)
	}
	return found, nil
}

func (s *SQLStore) offers(ctx context.Context, where *entsql.Predicate) ([]TariffOffer, error) {
	t := builder().Table("tariffs")
	sel := builder().Select(t.C("id"), t.C("name"), t.C("monthly_cents"), t.C("monthly12_cents"),
		t.C("setup_fee_cents"), t.C("contract_months"), t.C("includes_phone"), t.C("family"), t.C("customer_types")).
		From(t).
		OrderBy(t.C("position"))
	if where != nil {
		sel.Where(where)
	}
	var out []TariffOffer
	err := s.each(ctx, sel, func(rows *entsql.Rows) error {
		var o TariffOffer
		var m12 sql.NullInt64
		var cts string
		if err := rows.Scan(&o.ID, &o.Name, &o.MonthlyCents, &m12, &o.SetupFeeCents,
			&o.ContractMonths, &o.IncludesPhone, &o.Family, &cts); err != nil {
			return err
		}
		o.Monthly12Cents = fromNull(m12)
		list, err := parseList[types.CustomerType](cts)
		if err != nil {
			return fmt.Errorf("tariff %q customer types: %w", o.ID, err)
		}
		o.CustomerTypes = list
		out = append(out, o)
		return nil
	})
	return out, err
}

func (s *SQLStore) Tariffs(ctx context.Context, ct types.CustomerType) ([]types.Tariff, error) {
	offers, err := s.offers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	var out []types.Tariff
	for _, o := range offers {
		if o.OfferedTo(ct) {
			out = append(out, o.Tariff)
		}
	}
	return out, nil
}

func (s *SQLStore) Tariff(ctx context.Context, id string) (*types.Tariff, error) {
	offers, err := s.offers(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("tariff %q: %w", id, ErrNotFound)
	}
	return &offers[0].Tariff, nil
}

func (s *SQLStore) Eligibility(ctx context.Context, tariffID, buildingID string, ct types.CustomerType) (*types.Eligibility, error) {
	offers, err := s.offers(ctx, entsql.EQ("id", tariffID))
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	if len(offers) == 0 || !offers[0].OfferedTo(ct) {
		return nil, fmt.Errorf("tariff %q: %w", tariffID, ErrNotFound)
	}

	a := builder().Table("addons")
	ta := builder().Table("tariff_addons")
	sel := builder().Select(a.C("id"), a.C("name"), a.C("category"), a.C("monthly_cents"), a.C("one_time_cents"),
		a.C("discounted_cents"), a.C("ftth"), a.C("fttb"), a.C("cable_based")).
		From(a).
		Join(ta).On(a.C("id"), ta.C("addon_id")).
		Where(entsql.And(
			entsql.EQ(ta.C("tariff_id"), tariffID),
			entsql.Or(entsql.EQ(ta.C("building_id"), ""), entsql.EQ(ta.C("building_id"), buildingID)),
		)).
		OrderBy(ta.C("position"))

	var addons []types.Addon
	seen := make(map[string]bool)
	err = s.each(ctx, sel, func(rows *entsql.Rows) error {
		var ad types.Addon
		var cat string
		var disc sql.NullInt64
		if err := rows.Scan(&ad.ID, &ad.Name, &cat, &ad.MonthlyCents, &ad.OneTimeCents,
			&disc, &ad.FTTH, &ad.FTTB, &ad.CableBased); err != nil {
			return err
		}
		if seen[ad.ID] {
			return nil
		}
		seen[ad.ID] = true
		ad.Category = types.AddonCategory(cat)
		ad.DiscountedCents = fromNull(disc)
		addons = append(addons, ad)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	return buildEligibility(tariffID, buildingID, ct, addons), nil
}

func (s *SQLStore) Promotions(ctx context.Context, addr *types.Address, tariffID string) ([]types.Promotion, error) {
	t := builder().Table("promotions")
	sel := builder().Select(t.C("id"), t.C("name"), t.C("scope"), t.C("router_id"),
		t.C("router_monthly_discount_cents"), t.C("router_one_time_discount_cents"), t.C("setup_fee_waived"),
		t.C("street"), t.C("building_id"), t.C("tariff_ids")).
		From(t).
		OrderBy(t.C("position"))

	var out []types.Promotion
	err := s.each(ctx, sel, func(rows *entsql.Rows) error {
		var r PromotionRule
		var scope, tariffs string
		if err := rows.Scan(&r.ID, &r.Name, &scope, &r.RouterID, &r.RouterMonthlyDiscountCents,
			&r.RouterOneTimeDiscountCents, &r.SetupFeeWaived, &r.Street, &r.BuildingID, &tariffs); err != nil {
			return err
		}
		r.Scope = types.PromotionScope(scope)
		ids, err := parseList[string](tariffs)
		if err != nil {
			return fmt.Errorf("promotion %q tariffs: %w", r.ID, err)
		}
		r.TariffIDs = ids
		if r.Matches(addr, tariffID) {
			out = append(out, r.Promotion)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("promotions: %w", err)
	}
	return out, nil
}

func (s *SQLStore) PromoCode(ctx context.Context, code string) (*types.PromoCode, error) {
	t := builder().Table("promo_codes")
	sel := builder().Select(t.C("code"), t.C("valid_addresses"), t.C("router_discount_cents"),
		t.C("router_one_time_discount_cents"), t.C("setup_fee_waived"), t.C("description")).
		From(t).
		Where(entsql.EQ(t.C("key"), NormalizeCode(code)))

	var found *types.PromoCode
	err := s.each(ctx, sel, func(rows *entsql.Rows) error {
		var pc types.PromoCode
		var valid string
		if err := rows.Scan(&pc.Code, &valid, &pc.RouterDiscountCents, &pc.RouterOneTimeDiscountCents,
			&pc.SetupFeeWaived, &pc.Description); err != nil {
			return err
		}
		list, err := parseList[string](valid)
		if err != nil {
			return err
		}
		pc.ValidAddresses = list
		found = &pc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("promo code: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("promo code %q: %w", code, ErrNotFound)
	}
	return found, nil
}

func (s *SQLStore) ValidateReferrer(ctx context.Context, customerNumber string) (bool, error) {
	t := builder().Table("referrers")
	q, args := builder().Select(entsql.Count("*")).From(t).
		Where(entsql.EQ(t.C("customer_number"), customerNumber)).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return false, fmt.Errorf("validate referrer: %w", err)
	}
	defer rows.Close()
	n, err := entsql.ScanInt(rows)
	if err != nil {
		return false, fmt.Errorf("validate referrer: %w", err)
	}
	return n > 0, nil
}
