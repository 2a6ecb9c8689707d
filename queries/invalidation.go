package queries

import (
	"context"

	"github.com/goliatone/go-medlocus/cache"
)

// InvalidationTable lists, per mutated resource, every resource whose cached
// results become outdated once the mutation succeeds.
var InvalidationTable = map[string][]string{
	ResourceMedicines: {
		ResourceMedicines,
		ResourceInventoryAlerts,
		ResourceKPIs,
		ResourceReportSummary,
	},
	ResourceCustomers: {
		ResourceCustomers,
		ResourceReportSummary,
	},
	ResourceSales: {
		ResourceSales,
		ResourceMedicines,
		ResourceInventoryAlerts,
		ResourceTransactions,
		ResourceKPIs,
		ResourceReportSummary,
	},
}

// Invalidates returns the resources invalidated by a mutation of resource.
// Unknown resources only invalidate themselves.
func Invalidates(resource string) []string {
	targets, ok := InvalidationTable[resource]
	if !ok {
		return []string{resource}
	}
	return append([]string(nil), targets...)
}

type extraInvalidationKey struct{}

// WithInvalidation attaches additional resources to invalidate after a
// successful write made with ctx.
func WithInvalidation(ctx context.Context, resources ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(resources) == 0 {
		return ctx
	}

	combined := dedupeStrings(append(extraInvalidation(ctx), resources...))
	if len(combined) == 0 {
		return ctx
	}
	return context.WithValue(ctx, extraInvalidationKey{}, combined)
}

func extraInvalidation(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if resources, ok := ctx.Value(extraInvalidationKey{}).([]string); ok {
		return append([]string(nil), resources...)
	}
	return nil
}

// invalidateAfter marks every cached result made outdated by a successful
// write to resource as stale.
func (b *Bindings) invalidateAfter(ctx context.Context, resource string) {
	targets := dedupeStrings(append(Invalidates(resource), extraInvalidation(ctx)...))
	n := b.cache.Invalidate(cache.ByResource(targets...))
	b.logger.Debug("invalidated after write", "resource", resource, "targets", targets, "entries", n)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
