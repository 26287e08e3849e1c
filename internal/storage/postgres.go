package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/badge"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
	"earlyshhAPI/internal/types/story"
	"earlyshhAPI/internal/types/survey"
	"earlyshhAPI/internal/types/user"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage connects a pool with the same limits the API has always
// run with and pings it before returning.
func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{db: pool}, nil
}

// Migrate applies the schema. Every statement is idempotent.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Println("Database schema is up to date")
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStorage) Close() {
	s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// Users

const userColumns = `id, instagram_id, clerk_id, username, display_name, profile_picture,
	total_free_products, total_savings::text, total_stories, total_referrals, total_points,
	current_streak, longest_streak, last_activity_date, level, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	var savings string
	err := row.Scan(
		&u.ID,
		&u.InstagramID,
		&u.ClerkID,
		&u.Username,
		&u.DisplayName,
		&u.ProfilePicture,
		&u.TotalFreeProducts,
		&savings,
		&u.TotalStories,
		&u.TotalReferrals,
		&u.TotalPoints,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.LastActivityDate,
		&u.Level,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.TotalSavings, err = decimal.NewFromString(savings); err != nil {
		return nil, fmt.Errorf("invalid total_savings %q: %w", savings, err)
	}
	return u, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, u *user.User) error {
	query := `
	INSERT INTO users (instagram_id, clerk_id, username, display_name, profile_picture,
		total_free_products, total_savings, total_stories, total_referrals, total_points,
		current_streak, longest_streak, last_activity_date, level, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		u.InstagramID, u.ClerkID, u.Username, u.DisplayName, u.ProfilePicture,
		u.TotalFreeProducts, u.TotalSavings.String(), u.TotalStories, u.TotalReferrals, u.TotalPoints,
		u.CurrentStreak, u.LongestStreak, u.LastActivityDate, u.Level, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with instagram id %s: %w", u.InstagramID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id int) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

func (s *PostgresStorage) GetUserByInstagramID(ctx context.Context, instagramID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE instagram_id = $1`, instagramID))
	if err != nil {
		return nil, notFound(err, "user with instagram id "+instagramID)
	}
	return u, nil
}

func (s *PostgresStorage) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
	if err != nil {
		return nil, notFound(err, "user with clerk id "+clerkID)
	}
	return u, nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ModifyUser reads the row with SELECT ... FOR UPDATE so concurrent stat
// updates, also from other instances, are applied one after another.
func (s *PostgresStorage) ModifyUser(ctx context.Context, id int, fn func(u *user.User) error) (*user.User, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin user update: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.ID = id

	query := `
	UPDATE users SET
		clerk_id = $2, username = $3, display_name = $4, profile_picture = $5,
		total_free_products = $6, total_savings = $7::numeric, total_stories = $8,
		total_referrals = $9, total_points = $10, current_streak = $11, longest_streak = $12,
		last_activity_date = $13, level = $14, updated_at = $15
	WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		u.ID, u.ClerkID, u.Username, u.DisplayName, u.ProfilePicture,
		u.TotalFreeProducts, u.TotalSavings.String(), u.TotalStories,
		u.TotalReferrals, u.TotalPoints, u.CurrentStreak, u.LongestStreak,
		u.LastActivityDate, u.Level, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("user %d: %w", id, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}
	return u, nil
}

// Campaigns

const campaignColumns = `id, brand_name, brand_logo, product_name, title, description, offer_text,
	product_value::text, legal_text, category, image_url, start_date, end_date, max_coupons,
	per_user_limit, latitude, longitude, address, status, created_at, updated_at`

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	c := &campaign.Campaign{}
	var value string
	err := row.Scan(
		&c.ID,
		&c.BrandName,
		&c.BrandLogo,
		&c.ProductName,
		&c.Title,
		&c.Description,
		&c.OfferText,
		&value,
		&c.LegalText,
		&c.Category,
		&c.ImageURL,
		&c.StartDate,
		&c.EndDate,
		&c.MaxCoupons,
		&c.PerUserLimit,
		&c.Latitude,
		&c.Longitude,
		&c.Address,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.ProductValue, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("invalid product_value %q: %w", value, err)
	}
	return c, nil
}

func (s *PostgresStorage) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	query := `
	INSERT INTO campaigns (brand_name, brand_logo, product_name, title, description, offer_text,
		product_value, legal_text, category, image_url, start_date, end_date, max_coupons,
		per_user_limit, latitude, longitude, address, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		c.BrandName, c.BrandLogo, c.ProductName, c.Title, c.Description, c.OfferText,
		c.ProductValue.String(), c.LegalText, c.Category, c.ImageURL, c.StartDate, c.EndDate, c.MaxCoupons,
		c.PerUserLimit, c.Latitude, c.Longitude, c.Address, c.Status, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetCampaign(ctx context.Context, id int) (*campaign.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("campaign %d", id))
	}
	return c, nil
}

func (s *PostgresStorage) ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	rows, err := s.db.Query(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*campaign.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *PostgresStorage) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	query := `
	UPDATE campaigns SET
		brand_name = $2, brand_logo = $3, product_name = $4, title = $5, description = $6,
		offer_text = $7, product_value = $8::numeric, legal_text = $9, category = $10, image_url = $11,
		start_date = $12, end_date = $13, max_coupons = $14, per_user_limit = $15,
		latitude = $16, longitude = $17, address = $18, status = $19, updated_at = $20
	WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		c.ID, c.BrandName, c.BrandLogo, c.ProductName, c.Title, c.Description,
		c.OfferText, c.ProductValue.String(), c.LegalText, c.Category, c.ImageURL,
		c.StartDate, c.EndDate, c.MaxCoupons, c.PerUserLimit,
		c.Latitude, c.Longitude, c.Address, c.Status, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

// Coupons

const couponColumns = `id, campaign_id, user_id, code, qr_payload, fetch_code, status,
	claimed_at, expiration_date, redeemed_at, story_posted`

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	c := &coupon.Coupon{}
	err := row.Scan(
		&c.ID,
		&c.CampaignID,
		&c.UserID,
		&c.Code,
		&c.QRPayload,
		&c.FetchCode,
		&c.Status,
		&c.ClaimedAt,
		&c.ExpirationDate,
		&c.RedeemedAt,
		&c.StoryPosted,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCouponIfAvailable locks the campaign row so concurrent claims for the
// same campaign queue up behind each other. The unique (user_id, campaign_id)
// constraint backs up the duplicate check.
func (s *PostgresStorage) CreateCouponIfAvailable(ctx context.Context, c *coupon.Coupon) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var camp campaign.Campaign
	err = tx.QueryRow(ctx,
		`SELECT max_coupons, status, start_date, end_date FROM campaigns WHERE id = $1 FOR UPDATE`,
		c.CampaignID,
	).Scan(&camp.MaxCoupons, &camp.Status, &camp.StartDate, &camp.EndDate)
	if err != nil {
		return notFound(err, fmt.Sprintf("campaign %d", c.CampaignID))
	}
	if !camp.IsRunning(c.ClaimedAt) {
		return ErrCampaignInactive
	}

	var alreadyClaimed bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM coupons WHERE campaign_id = $1 AND user_id = $2)`,
		c.CampaignID, c.UserID,
	).Scan(&alreadyClaimed)
	if err != nil {
		return fmt.Errorf("failed to check existing claim: %w", err)
	}
	if alreadyClaimed {
		return ErrAlreadyClaimed
	}

	var issued int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM coupons WHERE campaign_id = $1`, c.CampaignID).Scan(&issued); err != nil {
		return fmt.Errorf("failed to count coupons: %w", err)
	}
	if issued >= camp.MaxCoupons {
		return ErrCapacityExceeded
	}

	query := `
	INSERT INTO coupons (campaign_id, user_id, code, qr_payload, fetch_code, status,
		claimed_at, expiration_date, redeemed_at, story_posted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
	`
	err = tx.QueryRow(ctx, query,
		c.CampaignID, c.UserID, c.Code, c.QRPayload, c.FetchCode, c.Status,
		c.ClaimedAt, c.ExpirationDate, c.RedeemedAt, c.StoryPosted,
	).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "coupons_user_campaign_key" {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit claim: %w", err)
	}
	return nil
}

func (s *PostgresStorage) getCouponWhere(ctx context.Context, where string, what string, args ...any) (*coupon.Coupon, error) {
	c, err := scanCoupon(s.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE `+where, args...))
	if err != nil {
		return nil, notFound(err, what)
	}
	return c, nil
}

func (s *PostgresStorage) GetCoupon(ctx context.Context, id int) (*coupon.Coupon, error) {
	return s.getCouponWhere(ctx, "id = $1", fmt.Sprintf("coupon %d", id), id)
}

func (s *PostgresStorage) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return s.getCouponWhere(ctx, "code = $1", "coupon with code "+code, code)
}

func (s *PostgresStorage) GetCouponByFetchCode(ctx context.Context, fetchCode string) (*coupon.Coupon, error) {
	return s.getCouponWhere(ctx, "fetch_code = $1", "coupon with fetch code", fetchCode)
}

func (s *PostgresStorage) GetUserCouponForCampaign(ctx context.Context, userID, campaignID int) (*coupon.Coupon, error) {
	return s.getCouponWhere(ctx, "user_id = $1 AND campaign_id = $2",
		fmt.Sprintf("coupon for user %d campaign %d", userID, campaignID), userID, campaignID)
}

func (s *PostgresStorage) ListCouponsByUser(ctx context.Context, userID int) ([]*coupon.Coupon, error) {
	rows, err := s.db.Query(ctx, `SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*coupon.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (s *PostgresStorage) CountCouponsByCampaign(ctx context.Context, campaignID int) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupons WHERE campaign_id = $1`, campaignID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count coupons: %w", err)
	}
	return n, nil
}

// RedeemCouponIfClaimed is a conditional update, so only one of several
// concurrent redemptions can match the claimed row.
func (s *PostgresStorage) RedeemCouponIfClaimed(ctx context.Context, id int, at time.Time) (*coupon.Coupon, error) {
	query := `
	UPDATE coupons SET status = $3, redeemed_at = $2
	WHERE id = $1 AND status = $4 AND expiration_date >= $2
	RETURNING ` + couponColumns

	c, err := scanCoupon(s.db.QueryRow(ctx, query, id, at, coupon.StatusRedeemed, coupon.StatusClaimed))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}

	current, err := s.GetCoupon(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == coupon.StatusRedeemed {
		return nil, ErrAlreadyRedeemed
	}
	return nil, ErrCouponExpired
}

func (s *PostgresStorage) ExpireCouponIfLapsed(ctx context.Context, id int, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE coupons SET status = $3 WHERE id = $1 AND status = $4 AND expiration_date < $2`,
		id, at, coupon.StatusExpired, coupon.StatusClaimed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire coupon: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) MarkCouponStoryPosted(ctx context.Context, id int) error {
	tag, err := s.db.Exec(ctx, `UPDATE coupons SET story_posted = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to flag story on coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	return nil
}

// Stories

const storyColumns = `id, user_id, coupon_id, campaign_id, story_url, impressions, reach, created_at, updated_at`

func scanStory(row pgx.Row) (*story.Story, error) {
	st := &story.Story{}
	err := row.Scan(&st.ID, &st.UserID, &st.CouponID, &st.CampaignID, &st.StoryURL,
		&st.Impressions, &st.Reach, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStorage) CreateStory(ctx context.Context, st *story.Story) error {
	query := `
	INSERT INTO stories (user_id, coupon_id, campaign_id, story_url, impressions, reach, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id
	`
	err := s.db.QueryRow(ctx, query, st.UserID, st.CouponID, st.CampaignID, st.StoryURL,
		st.Impressions, st.Reach, st.CreatedAt, st.UpdatedAt).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetStory(ctx context.Context, id int) (*story.Story, error) {
	st, err := scanStory(s.db.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("story %d", id))
	}
	return st, nil
}

func (s *PostgresStorage) UpdateStory(ctx context.Context, st *story.Story) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE stories SET story_url = $2, impressions = $3, reach = $4, updated_at = $5 WHERE id = $1`,
		st.ID, st.StoryURL, st.Impressions, st.Reach, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("story %d: %w", st.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) listStories(ctx context.Context, where string, args ...any) ([]*story.Story, error) {
	rows, err := s.db.Query(ctx, `SELECT `+storyColumns+` FROM stories WHERE `+where+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := []*story.Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, st)
	}
	return stories, rows.Err()
}

func (s *PostgresStorage) ListStoriesByUser(ctx context.Context, userID int) ([]*story.Story, error) {
	return s.listStories(ctx, "user_id = $1", userID)
}

func (s *PostgresStorage) ListStoriesByCampaign(ctx context.Context, campaignID int) ([]*story.Story, error) {
	return s.listStories(ctx, "campaign_id = $1", campaignID)
}

func (s *PostgresStorage) CountStoriesByUserSince(ctx context.Context, userID int, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM stories WHERE user_id = $1 AND created_at >= $2`, userID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stories: %w", err)
	}
	return n, nil
}

// Surveys

func (s *PostgresStorage) CreateSurvey(ctx context.Context, sv *survey.Survey) error {
	query := `
	INSERT INTO surveys (user_id, coupon_id, campaign_id, rating, feedback, would_recommend, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`
	err := s.db.QueryRow(ctx, query, sv.UserID, sv.CouponID, sv.CampaignID, sv.Rating,
		sv.Feedback, sv.WouldRecommend, sv.CreatedAt).Scan(&sv.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("survey for coupon %d: %w", sv.CouponID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create survey: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListSurveysByCampaign(ctx context.Context, campaignID int) ([]*survey.Survey, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, coupon_id, campaign_id, rating, feedback, would_recommend, created_at
	FROM surveys WHERE campaign_id = $1 ORDER BY id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	surveys := []*survey.Survey{}
	for rows.Next() {
		sv := &survey.Survey{}
		if err := rows.Scan(&sv.ID, &sv.UserID, &sv.CouponID, &sv.CampaignID, &sv.Rating,
			&sv.Feedback, &sv.WouldRecommend, &sv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		surveys = append(surveys, sv)
	}
	return surveys, rows.Err()
}

// Badges

func (s *PostgresStorage) CreateBadge(ctx context.Context, b *badge.Badge) error {
	query := `
	INSERT INTO badges (key, name, description, icon, requirement_type, requirement_value, requirement_timeframe)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`
	err := s.db.QueryRow(ctx, query, b.Key, b.Name, b.Description, b.Icon,
		b.Requirement.Type, b.Requirement.Value, b.Requirement.Timeframe).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("badge %s: %w", b.Key, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create badge: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, key, name, description, icon, requirement_type, requirement_value, requirement_timeframe
	FROM badges ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	badges := []*badge.Badge{}
	for rows.Next() {
		b := &badge.Badge{}
		if err := rows.Scan(&b.ID, &b.Key, &b.Name, &b.Description, &b.Icon,
			&b.Requirement.Type, &b.Requirement.Value, &b.Requirement.Timeframe); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (s *PostgresStorage) ListUserBadges(ctx context.Context, userID int) ([]*badge.UserBadge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, badge_id, earned_at FROM user_badges WHERE user_id = $1 ORDER BY earned_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	earned := []*badge.UserBadge{}
	for rows.Next() {
		ub := &badge.UserBadge{}
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &ub.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		earned = append(earned, ub)
	}
	return earned, rows.Err()
}

func (s *PostgresStorage) CreateUserBadge(ctx context.Context, ub *badge.UserBadge) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES ($1, $2, $3)`,
		ub.UserID, ub.BadgeID, ub.EarnedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("badge %d for user %d: %w", ub.BadgeID, ub.UserID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to award badge: %w", err)
	}
	return nil
}

// Activities

func (s *PostgresStorage) CreateActivity(ctx context.Context, a *activity.Activity) error {
	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode activity metadata: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO user_activities (user_id, type, points, metadata, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.UserID, a.Type, a.Points, metadataJSON, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListActivitiesByUser(ctx context.Context, userID int, limit int) ([]*activity.Activity, error) {
	query := `SELECT id, user_id, type, points, metadata, created_at FROM user_activities WHERE user_id = $1 ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*activity.Activity{}
	for rows.Next() {
		a := &activity.Activity{}
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Points, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		json.Unmarshal(metadata, &a.Metadata)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// Notifications

const notificationColumns = `id, user_id, type, title, message, data, is_read, created_at`

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	n := &notification.Notification{}
	var data []byte
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	json.Unmarshal(data, &n.Data)
	return n, nil
}

func (s *PostgresStorage) CreateNotification(ctx context.Context, n *notification.Notification) error {
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	err = s.db.QueryRow(ctx, `
	INSERT INTO notifications (user_id, type, title, message, data, is_read, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`, n.UserID, n.Type, n.Title, n.Message, dataJSON, n.IsRead, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetNotification(ctx context.Context, id int) (*notification.Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("notification %d", id))
	}
	return n, nil
}

func (s *PostgresStorage) ListNotificationsByUser(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]*notification.Notification, int, error) {
	whereClause := "WHERE user_id = $1"
	if unreadOnly {
		whereClause += " AND is_read = FALSE"
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+whereClause, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		%s
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, notificationColumns, whereClause)

	rows, err := s.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*notification.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

func (s *PostgresStorage) CountUnreadNotifications(ctx context.Context, userID int) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return n, nil
}

func (s *PostgresStorage) UpdateNotification(ctx context.Context, n *notification.Notification) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = $2 WHERE id = $1`, n.ID, n.IsRead)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d: %w", n.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) MarkAllNotificationsRead(ctx context.Context, userID int) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) DeleteNotification(ctx context.Context, id int) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) UpsertDeviceToken(ctx context.Context, t *notification.DeviceToken) error {
	_, err := s.db.Exec(ctx, `
	INSERT INTO device_tokens (user_id, token, platform, added_at, last_used)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, token)
	DO UPDATE SET platform = EXCLUDED.platform, last_used = EXCLUDED.last_used
	`, t.UserID, t.Token, t.Platform, t.AddedAt, t.LastUsed)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListDeviceTokens(ctx context.Context, userID int) ([]*notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, token, platform, added_at, last_used FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	tokens := []*notification.DeviceToken{}
	for rows.Next() {
		t := &notification.DeviceToken{}
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.AddedAt, &t.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Analytics

func (s *PostgresStorage) CreateAnalyticsEvent(ctx context.Context, e *analytics.Event) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO analytics_events (campaign_id, user_id, type, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		e.CampaignID, e.UserID, e.Type, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to record analytics event: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListAnalyticsEvents(ctx context.Context, campaignID int) ([]*analytics.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, campaign_id, user_id, type, created_at FROM analytics_events WHERE campaign_id = $1 ORDER BY id`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}
	defer rows.Close()

	events := []*analytics.Event{}
	for rows.Next() {
		e := &analytics.Event{}
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.UserID, &e.Type, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytics event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var (
	_ Storage = (*PostgresStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
