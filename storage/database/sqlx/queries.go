package sqlxrepos

// restaurantsQuery selects ranked restaurants with their tags and reviews.
// Ranks are computed over every restaurant before any filter applies.
// Format verbs: WHERE clause, then ORDER/LIMIT tail. $1 is always the language code.
const restaurantsQuery = `
WITH tags_agg AS (
	SELECT rt.restaurant_id, ARRAY_AGG(t.tagname ORDER BY t.tagname) AS tags
	FROM restaurant_tags rt
	JOIN tags t ON t.id = rt.tag_id
	GROUP BY rt.restaurant_id
),
reviews_agg AS (
	SELECT rv.restaurant_id,
		JSON_AGG(JSON_BUILD_OBJECT(
			'comment', rv.comment,
			'rating', rv.rating,
			'reviewedAt', rv.reviewed_at,
			'user', JSON_BUILD_OBJECT(
				'userID', u.id,
				'username', u.username,
				'profilePictureURL', u.profile_picture_url
			)
		) ORDER BY rv.reviewed_at DESC) AS reviews
	FROM restaurant_reviews rv
	JOIN users u ON u.id = rv.user_id
	GROUP BY rv.restaurant_id
),
ranked_restaurants AS (
	SELECT id, RANK() OVER (ORDER BY average_rating DESC, rating_count DESC) AS rank
	FROM restaurants
)
SELECT
	r.id,
	rtt.name AS restaurant_name,
	r.restaurant_logo,
	rtt.description,
	r.rating_count,
	r.average_rating,
	rr.rank,
	COALESCE(ta.tags, '{}') AS tags,
	COALESCE(ra.reviews, '[]'::JSON) AS reviews
FROM restaurants r
JOIN ranked_restaurants rr ON rr.id = r.id
JOIN restaurant_translations rtt ON rtt.restaurant_id = r.id AND rtt.language_code = $1
LEFT JOIN tags_agg ta ON ta.restaurant_id = r.id
LEFT JOIN reviews_agg ra ON ra.restaurant_id = r.id
WHERE %s
%s`

// $2: search pattern, $3: tag IDs (all required)
const restaurantsFilter = `rtt.name ILIKE $2
	AND (
		CARDINALITY($3::INT[]) = 0
		OR r.id IN (
			SELECT restaurant_id FROM restaurant_tags
			WHERE tag_id = ANY($3::INT[])
			GROUP BY restaurant_id
			HAVING COUNT(DISTINCT tag_id) = CARDINALITY($3::INT[])
		)
	)`

// $4: limit, $5: offset
const restaurantsPage = `ORDER BY r.%s, r.rating_count DESC, r.id
LIMIT $4 OFFSET $5`

const countRestaurantsQuery = `
SELECT COUNT(*)
FROM restaurants r
JOIN restaurant_translations rtt ON rtt.restaurant_id = r.id AND rtt.language_code = $1
WHERE ` + restaurantsFilter

const lockRestaurantQuery = `SELECT id FROM restaurants WHERE id = $1 FOR UPDATE`

const getReviewQuery = `
SELECT rating, comment, reviewed_at
FROM restaurant_reviews
WHERE user_id = $1 AND restaurant_id = $2`

const upsertReviewQuery = `
INSERT INTO restaurant_reviews (user_id, restaurant_id, rating, comment)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, restaurant_id) DO UPDATE
SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, reviewed_at = CURRENT_TIMESTAMP`

const refreshRatingStatsQuery = `
UPDATE restaurants
SET average_rating = COALESCE((SELECT AVG(rating)::NUMERIC(3, 2) FROM restaurant_reviews WHERE restaurant_id = $1), 0),
	rating_count = (SELECT COUNT(rating) FROM restaurant_reviews WHERE restaurant_id = $1)
WHERE id = $1`

const userReviewsQuery = `
SELECT
	rv.restaurant_id,
	rv.rating,
	rv.reviewed_at,
	rv.comment,
	COALESCE(rtt.name, '') AS restaurant_name,
	r.restaurant_logo
FROM restaurant_reviews rv
JOIN restaurants r ON r.id = rv.restaurant_id
LEFT JOIN restaurant_translations rtt ON rtt.restaurant_id = r.id AND rtt.language_code = $2
WHERE rv.user_id = $1
ORDER BY rv.reviewed_at DESC`

const sponsorshipsQuery = `
SELECT
	s.id,
	s.restaurant_id,
	s.banner_image_url,
	COALESCE(rtt.name, '') AS restaurant_name,
	r.restaurant_logo
FROM sponsorships s
JOIN restaurants r ON r.id = s.restaurant_id
LEFT JOIN restaurant_translations rtt ON rtt.restaurant_id = r.id AND rtt.language_code = $1
WHERE s.is_active
ORDER BY s.display_order DESC, s.id`

const tagsQuery = `SELECT id, tagname FROM tags ORDER BY tagname`

const insertRestaurantQuery = `INSERT INTO restaurants (restaurant_logo) VALUES ($1) RETURNING id`

const insertTranslationQuery = `
INSERT INTO restaurant_translations (restaurant_id, language_code, name, description)
VALUES ($1, $2, $3, $4)`

const upsertTagQuery = `
INSERT INTO tags (tagname) VALUES ($1)
ON CONFLICT (tagname) DO UPDATE SET tagname = EXCLUDED.tagname
RETURNING id`

const insertRestaurantTagQuery = `
INSERT INTO restaurant_tags (restaurant_id, tag_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`

const insertSponsorshipQuery = `
INSERT INTO sponsorships (restaurant_id, banner_image_url, is_active, display_order)
VALUES ($1, $2, $3, $4)
RETURNING id`
