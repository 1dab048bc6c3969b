package database

// Catalog queries
const (
	FoodItemColumns = `
		id, name, description, price, category, image_url, is_available, stock_quantity,
		preparation_time, is_popular, is_featured, created_at, updated_at`

	GetFoodItemSQL = `SELECT` + FoodItemColumns + `
		FROM food_items WHERE id = $1`

	// ListAvailableFoodItemsSQL takes category, search, popular, featured, limit, offset.
	// NULL filters are ignored.
	ListAvailableFoodItemsSQL = `SELECT` + FoodItemColumns + `, COUNT(*) OVER () AS total
		FROM food_items
		WHERE is_available
		  AND ($1::text IS NULL OR category = $1)
		  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		  AND ($3::boolean IS NULL OR is_popular = $3)
		  AND ($4::boolean IS NULL OR is_featured = $4)
		ORDER BY is_featured DESC, is_popular DESC, name ASC
		LIMIT $5 OFFSET $6`

	ListCategoriesSQL = `
		SELECT category, COUNT(*)
		FROM food_items
		WHERE is_available
		GROUP BY category
		ORDER BY category`

	UpdateFoodItemAvailabilitySQL = `
		UPDATE food_items SET is_available = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING` + FoodItemColumns

	UpdateFoodItemStockSQL = `
		UPDATE food_items SET stock_quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING` + FoodItemColumns

	LockFoodItemsSQL = `SELECT` + FoodItemColumns + `
		FROM food_items WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	DecrementStockSQL = `
		UPDATE food_items SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity IS NOT NULL AND stock_quantity >= $2`

	RestockSQL = `
		UPDATE food_items SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity IS NOT NULL`
)

// Order queries
const (
	OrderColumns = `
		id, order_number, user_id, user_name, user_phone, user_email, delivery_address,
		delivery_instructions, special_instructions, subtotal, delivery_fee, tax, total_amount,
		payment_method, payment_status, order_status, gateway_order_id, gateway_payment_id,
		estimated_delivery_time, actual_delivery_time, cancellation_reason, cancelled_by,
		cancelled_at, notes, created_at, updated_at`

	OrderLineColumns = `
		id, order_id, food_item_id, name, quantity, unit_price, total_price,
		special_instructions, is_prepared, prepared_at, prepared_by`

	CountOrdersBetweenSQL = `
		SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`

	InsertOrderSQL = `
		INSERT INTO orders (
			id, order_number, user_id, user_name, user_phone, user_email, delivery_address,
			delivery_instructions, special_instructions, subtotal, delivery_fee, tax, total_amount,
			payment_method, payment_status, order_status, estimated_delivery_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)`

	InsertOrderLineSQL = `
		INSERT INTO order_items (
			id, order_id, food_item_id, name, quantity, unit_price, total_price,
			special_instructions, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	GetOrderSQL = `SELECT` + OrderColumns + `
		FROM orders WHERE id = $1`

	LockOrderSQL = `SELECT` + OrderColumns + `
		FROM orders WHERE id = $1
		FOR UPDATE`

	GetOrderLinesSQL = `SELECT` + OrderLineColumns + `
		FROM order_items WHERE order_id = $1
		ORDER BY position`

	GetOrderLinesForOrdersSQL = `SELECT` + OrderLineColumns + `
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	// ListOrdersSQL takes user_id, order_status, payment_status, search, from, to, limit, offset.
	ListOrdersSQL = `SELECT` + OrderColumns + `, COUNT(*) OVER () AS total
		FROM orders
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR order_status = $2)
		  AND ($3::text IS NULL OR payment_status = $3)
		  AND ($4::text IS NULL OR order_number ILIKE '%' || $4 || '%'
		       OR user_name ILIKE '%' || $4 || '%' OR user_email ILIKE '%' || $4 || '%')
		  AND ($5::timestamptz IS NULL OR created_at >= $5)
		  AND ($6::timestamptz IS NULL OR created_at < $6)
		ORDER BY created_at DESC
		LIMIT $7 OFFSET $8`

	UpdateOrderStatusSQL = `
		UPDATE orders SET
			order_status = $2,
			actual_delivery_time = $3,
			cancellation_reason = $4,
			cancelled_by = $5,
			cancelled_at = $6,
			notes = $7,
			updated_at = $8
		WHERE id = $1`

	MarkOrderLinesPreparedSQL = `
		UPDATE order_items SET is_prepared = TRUE, prepared_at = $2, prepared_by = $3
		WHERE order_id = $1 AND NOT is_prepared`

	UpdateOrderPaymentSQL = `
		UPDATE orders SET
			payment_status = $2,
			gateway_order_id = $3,
			gateway_payment_id = $4,
			updated_at = $5
		WHERE id = $1`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, order_status, payment_status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`

	GetOrderStatusHistorySQL = `
		SELECT id, order_id, order_status, payment_status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`

	// OrderStatusCountsSQL takes from, to (both nullable)
	OrderStatusCountsSQL = `
		SELECT order_status, COUNT(*)
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY order_status`

	OrderRevenueSQL = `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE payment_status = 'paid' AND order_status <> 'cancelled'
		  AND ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)`
)

// Review queries
const (
	ReviewColumns = `
		id, user_id, user_name, food_item_id, order_id, rating, comment, is_verified_purchase,
		admin_response, helpful_count, created_at, updated_at`

	ReviewExistsSQL = `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND food_item_id = $2)`

	// VerifiedPurchaseSQL takes user_id, food_item_id and an optional order_id
	VerifiedPurchaseSQL = `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items i ON i.order_id = o.id
			WHERE o.user_id = $1
			  AND i.food_item_id = $2
			  AND ($3::uuid IS NULL OR o.id = $3)
			  AND o.order_status <> 'cancelled')`

	InsertReviewSQL = `
		INSERT INTO reviews (
			id, user_id, user_name, food_item_id, order_id, rating, comment,
			is_verified_purchase, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	GetReviewSQL = `SELECT` + ReviewColumns + `
		FROM reviews WHERE id = $1`

	// ListItemReviewsSQL takes food_item_id, rating (nullable), limit, offset. The
	// ORDER BY clause is appended from a fixed set of sort keys.
	ListItemReviewsSQL = `SELECT` + ReviewColumns + `, COUNT(*) OVER () AS total
		FROM reviews
		WHERE food_item_id = $1
		  AND ($2::int IS NULL OR rating = $2)`

	ListUserReviewsSQL = `SELECT` + ReviewColumns + `, COUNT(*) OVER () AS total
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ItemRatingsSQL = `
		SELECT rating FROM reviews WHERE food_item_id = $1`

	UpdateReviewSQL = `
		UPDATE reviews SET rating = $2, comment = $3, updated_at = $4
		WHERE id = $1`

	DeleteReviewSQL = `
		DELETE FROM reviews WHERE id = $1`

	IncrementReviewHelpfulSQL = `
		UPDATE reviews SET helpful_count = helpful_count + 1
		WHERE id = $1
		RETURNING helpful_count`

	SetReviewAdminResponseSQL = `
		UPDATE reviews SET admin_response = $2, updated_at = $3
		WHERE id = $1`
)
