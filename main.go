package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/handlers"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/realtime"
	"marketplace/internal/storage"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	db := client.Database(config.AppEnv.DBName)
	log.Println("[BOOT] [INFO] MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Println("[BOOT] [WARN] user index:", err)
	}
	if err := database.EnsureProductIndexes(db); err != nil {
		log.Println("[BOOT] [WARN] product index:", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Println("[BOOT] [WARN] order index:", err)
	}
	if err := database.EnsureChatIndexes(db); err != nil {
		log.Println("[BOOT] [WARN] chat index:", err)
	}

	redisOpts, err := redis.ParseURL(config.AppEnv.RedisURL)
	if err != nil {
		log.Fatal("[BOOT] [ERROR] invalid REDIS_URL: ", err)
	}
	rdb := redis.NewClient(redisOpts)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Println("[BOOT] [WARN] redis unreachable, party cache degraded:", err)
		}
		cancel()
	}

	disk, err := storage.Connect()
	if err != nil {
		log.Fatal("[BOOT] [ERROR] storage: ", err)
	}

	broker := realtime.NewBroker()
	hub := realtime.NewHub(broker)
	go hub.Run()

	dir := realtime.NewCachedDirectory(realtime.NewMongoDirectory(db), rdb, config.AppEnv.PartyCacheTTL)
	gate := realtime.NewGate(dir, hub)
	view := realtime.NewOrderView()
	seedOrderView(db, view)

	watcher := realtime.NewWatcher(db, broker)
	watcher.Tap(realtime.TableChat, gate.HandleChat)
	watcher.Tap(realtime.TableOrders, func(_ context.Context, evt realtime.ChangeEvent) {
		view.Apply(evt)
	})
	watcher.Run(context.Background())

	secret := config.AppEnv.JWTSecret
	accessTTL := config.AppEnv.AccessTokenTTL
	refreshTTL := config.AppEnv.RefreshTokenTTL

	r := gin.Default()
	if config.AppEnv.StorageDisk == "local" {
		r.Static("/public", "./public")
	}

	r.POST("/auth/register", handlers.Register(db, secret, accessTTL, refreshTTL))
	r.POST("/auth/login", handlers.Login(db, secret, accessTTL, refreshTTL))
	r.POST("/auth/refresh", handlers.Refresh(db, secret, accessTTL, refreshTTL))
	r.POST("/auth/logout", handlers.Logout(db))
	r.GET("/auth/me", middleware.AuthGuard(secret), handlers.GetMe(db))
	r.PUT("/auth/profile", middleware.AuthGuard(secret), handlers.UpdateProfile(db))

	r.GET("/products", handlers.GetProducts(db))
	r.GET("/products/:id", handlers.GetProduct(db))

	r.GET("/ws", realtime.ServeWS(hub, secret))

	orders := r.Group("/orders")
	{
		orders.POST("", middleware.AuthGuard(secret, models.RoleBuyer), handlers.CreateOrder(db))
		orders.GET("", middleware.AuthGuard(secret, models.RoleBuyer), handlers.GetMyOrders(db))
		orders.GET("/:id", middleware.AuthGuard(secret), handlers.GetOrder(db))
		orders.GET("/:id/payment", middleware.AuthGuard(secret, models.RoleBuyer), handlers.GetPaymentInstructions(db))
		orders.POST("/:id/complete",
			middleware.AuthGuard(secret, models.RoleBuyer, models.RoleCourier),
			handlers.CompleteOrder(db, disk))
		orders.GET("/:id/messages", middleware.AuthGuard(secret), handlers.ListMessages(db))
		orders.POST("/:id/messages", middleware.AuthGuard(secret), handlers.PostMessage(db))
	}

	seller := r.Group("/seller")
	seller.Use(middleware.AuthGuard(secret, models.RoleSeller))
	{
		seller.GET("/products", handlers.SellerProducts(db))
		seller.POST("/products", handlers.CreateProduct(db, disk))
		seller.PUT("/products/:id", handlers.UpdateProduct(db, disk))
		seller.DELETE("/products/:id", handlers.DeleteProduct(db, disk))

		seller.GET("/orders", handlers.GetSellerOrders(db))
		seller.POST("/orders/:id/accept", handlers.SellerAcceptOrder(db))
		seller.POST("/orders/:id/ready", handlers.SellerReadyOrder(db))
	}

	courier := r.Group("/courier")
	courier.Use(middleware.AuthGuard(secret, models.RoleCourier))
	{
		courier.GET("/jobs", handlers.GetCourierJobs(db))
		courier.GET("/jobs/active", handlers.GetCourierActiveJobs(db))
		courier.POST("/jobs/:id/claim", handlers.CourierClaimJob(db, dir))
		courier.POST("/jobs/:id/location", handlers.CourierUpdateLocation(db))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AuthGuard(secret, models.RoleAdmin))
	{
		admin.GET("/stats", handlers.GetStats(view))
		admin.GET("/orders", handlers.GetAllOrders(db))
		admin.POST("/orders/:id/cancel", handlers.AdminCancelOrder(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}

// seedOrderView loads the current orders so the admin stats are correct
// before the first change event arrives.
func seedOrderView(db *mongo.Database, view *realtime.OrderView) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cursor, err := db.Collection("orders").Find(ctx, bson.M{})
	if err != nil {
		log.Println("[BOOT] [WARN] order view seed failed:", err)
		return
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		log.Println("[BOOT] [WARN] order view seed decode failed:", err)
		return
	}
	view.Seed(orders)
	log.Println("[BOOT] [INFO] order view seeded with", len(orders), "orders")
}
