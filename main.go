package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"quill/account"
	"quill/admin"
	"quill/cache"
	"quill/common"
	"quill/database"
	"quill/posts"
	"quill/stats"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	statsModule := stats.NewStatsModule(common.ConnectStatsDb())

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions("quill-session", store))

	corsConfig := cors.DefaultConfig()
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	postsModule := posts.NewPostsModule(db, statsModule)
	postsModule.RegisterRoutes(router)

	accountModule := account.NewAccountModule(db, postsModule, statsModule)
	accountModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(db, postsModule)
	adminModule.RegisterRoutes(router)

	// Reap stale rendered-post cache entries in the background.
	go func() {
		for {
			if err := cache.ClearOld(24 * time.Hour); err != nil {
				log.Printf("Error clearing old cache entries: %v", err)
			}
			time.Sleep(time.Hour)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
