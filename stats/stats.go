package stats

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ViewEvent is one recorded post view. Events live in their own
// sqlite database so dashboard aggregation never competes with the
// main store.
type ViewEvent struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	PostID    uint      `gorm:"not null;index"`
	AuthorID  int       `gorm:"not null;index"`
	CookieID  string    `gorm:"not null;index"`
	IP        string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

// StatsModule tracks post views for the author dashboard.
type StatsModule struct {
	db *gorm.DB
}

func NewStatsModule(db *gorm.DB) *StatsModule {
	if db == nil {
		log.Println("Stats DB is nil, view stats will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&ViewEvent{}); err != nil {
		log.Printf("Error migrating view_events table: %v", err)
		return nil
	}

	return &StatsModule{db: db}
}

// RecordView registers a view of a post. Throttled per visitor: a
// repeat view of the same post within 30 minutes is not recorded, so
// refreshes do not distort the dashboard. The post's own view counter
// is incremented separately and is not throttled.
func (s *StatsModule) RecordView(c *gin.Context, postID uint, authorID int) {
	if s == nil || s.db == nil {
		return
	}

	cookieID := s.getOrCreateCookieID(c)

	thirtyMinutesAgo := time.Now().Add(-30 * time.Minute)

	var recent ViewEvent
	err := s.db.Where("cookie_id = ? AND post_id = ? AND created_at > ?",
		cookieID, postID, thirtyMinutesAgo).First(&recent).Error
	if err == nil {
		return
	}

	event := ViewEvent{
		PostID:    postID,
		AuthorID:  authorID,
		CookieID:  cookieID,
		IP:        c.ClientIP(),
		CreatedAt: time.Now(),
	}

	// Insert asynchronously so the read path never waits on stats.
	go func() {
		if err := s.db.Create(&event).Error; err != nil {
			log.Printf("Error saving view event: %v", err)
		}
	}()
}

func (s *StatsModule) getOrCreateCookieID(c *gin.Context) string {
	cookieName := "quill_visitor_id"

	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	data := time.Now().String() + c.ClientIP() + c.Request.UserAgent()
	hash := sha256.Sum256([]byte(data))
	cookieID := hex.EncodeToString(hash[:])

	c.SetCookie(
		cookieName,
		cookieID,
		60*60*24*365*2, // 2 years
		"/",
		"",
		false,
		true,
	)

	return cookieID
}

// DayViews is the number of views on one calendar day.
type DayViews struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// PostViews is the number of views of one post.
type PostViews struct {
	PostID uint  `json:"post_id"`
	Count  int64 `json:"count"`
}

// PostViewCount returns the total recorded views of a post.
func (s *StatsModule) PostViewCount(postID uint) int64 {
	if s == nil || s.db == nil {
		return 0
	}

	var count int64
	s.db.Model(&ViewEvent{}).Where("post_id = ?", postID).Count(&count)
	return count
}

// ViewsByDay returns views of an author's posts per day over the last
// N days, zero-filled so charts have a point for every day.
func (s *StatsModule) ViewsByDay(authorID int, days int) []DayViews {
	if s == nil || s.db == nil {
		return []DayViews{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []struct {
		Date  string
		Count int64
	}

	s.db.Model(&ViewEvent{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("author_id = ? AND created_at >= ?", authorID, startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	dayViews := make([]DayViews, days)
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - 1 - i))
		dayViews[i] = DayViews{
			Date:  date.Format("2006-01-02"),
			Count: 0,
		}
	}

	for _, result := range results {
		for i := range dayViews {
			if dayViews[i].Date == result.Date {
				dayViews[i].Count = result.Count
				break
			}
		}
	}

	return dayViews
}

// TopPosts returns the author's most viewed posts over the last N days.
func (s *StatsModule) TopPosts(authorID int, days int, limit int) []PostViews {
	if s == nil || s.db == nil {
		return []PostViews{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []PostViews
	s.db.Model(&ViewEvent{}).
		Select("post_id as post_id, COUNT(*) as count").
		Where("author_id = ? AND created_at >= ?", authorID, startDate).
		Group("post_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results)

	return results
}
