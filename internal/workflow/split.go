package workflow

import (
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// SplitOrdersByDeliveryDate groups lines by delivery date so each group can
// become its own sales order. Lines without a date fall under the order's
// requested delivery date. Groups keep the order of first appearance.
func SplitOrdersByDeliveryDate(res *entity.ParseResult) ([]entity.SplitOrder, bool) {
	if res == nil || len(res.Lines) == 0 {
		return []entity.SplitOrder{}, false
	}

	var keys []string
	groups := map[string][]entity.Line{}
	for _, l := range res.Lines {
		key := utils.StrOrEmpty(utils.FirstNonBlank(l.DeliveryDate, res.Order.RequestedDeliveryDate))
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], l)
	}

	out := make([]entity.SplitOrder, 0, len(keys))
	for _, k := range keys {
		order := res.Order
		date := utils.StrPtr(k)
		if date != nil {
			order.RequestedDeliveryDate = date
		}
		out = append(out, entity.SplitOrder{DeliveryDate: date, Order: order, Lines: groups[k]})
	}
	return out, len(out) > 1
}
