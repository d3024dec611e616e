// Package devserver is an in-memory reference backend implementing the
// storefront REST contract. It exists for local development and end-to-end
// tests of the client; it is not a production server.
package devserver

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	email        string
	passwordHash []byte
	role         string
}

type cartLine struct {
	itemID    int64
	productID int64
	quantity  int
}

type orderLine struct {
	id              int64
	quantity        int
	priceAtPurchase float64
	product         variant
}

type order struct {
	id         int64
	status     string
	totalPrice float64
	items      []orderLine
}

type variant struct {
	id      int64
	groupID int64
	name    string
	brand   string
	image   string
	price   float64
	color   string
	size    float64
	stock   int
}

type userState struct {
	cartID int64
	items  []cartLine
	orders []order
}

type Server struct {
	logger *zap.Logger

	mu       sync.Mutex
	users    map[string]*user      // by email
	sessions map[string]string     // bearer token -> email
	state    map[string]*userState // by email
	variants []variant

	nextCartID  int64
	nextItemID  int64
	nextOrderID int64
}

func New(logger *zap.Logger) *Server {
	return &Server{
		logger:   logger,
		users:    map[string]*user{},
		sessions: map[string]string{},
		state:    map[string]*userState{},
		variants: seedVariants(),
	}
}

// Router creates and configures the Gin router.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(s.logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.POST("/auth/register", s.handleRegister)
	router.POST("/auth/login", s.handleLogin)
	router.GET("/products", s.handleListProducts)

	// Authenticated routes
	authed := router.Group("")
	authed.Use(s.authMiddleware())
	{
		authed.GET("/user/me", s.handleMe)
		authed.GET("/cart", s.handleGetCart)
		authed.POST("/cart", s.handleAddCartItem)
		authed.PATCH("/cart/item/:itemId", s.handleUpdateCartItem)
		authed.DELETE("/cart/item/:itemId", s.handleRemoveCartItem)
		authed.POST("/orders", s.handleCheckout)
		authed.GET("/orders", s.handleListOrders)
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}

const bearerPrefix = "Bearer "

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= len(bearerPrefix) || header[:len(bearerPrefix)] != bearerPrefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := header[len(bearerPrefix):]

		s.mu.Lock()
		email, ok := s.sessions[token]
		s.mu.Unlock()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("email", email)
		c.Next()
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		c.JSON(http.StatusConflict, gin.H{"message": "email already registered"})
		return
	}
	s.users[req.Email] = &user{
		email:        req.Email,
		passwordHash: hash,
		role:         "USER",
	}

	c.Status(http.StatusCreated)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}

	token := uuid.NewString()
	s.sessions[token] = u.email

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleMe(c *gin.Context) {
	email := c.GetString("email")

	s.mu.Lock()
	u := s.users[email]
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"email": u.email,
		"role":  gin.H{"name": u.role},
	})
}

func (s *Server) handleListProducts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := map[int64][]variant{}
	groupOrder := []int64{}
	for _, v := range s.variants {
		if _, seen := grouped[v.groupID]; !seen {
			groupOrder = append(groupOrder, v.groupID)
		}
		grouped[v.groupID] = append(grouped[v.groupID], v)
	}

	products := make([]gin.H, 0, len(groupOrder))
	for _, groupID := range groupOrder {
		vs := grouped[groupID]
		first := vs[0]

		colors := []string{}
		sizes := []float64{}
		stock := 0
		variants := make([]gin.H, 0, len(vs))
		for _, v := range vs {
			colors = append(colors, v.color)
			sizes = append(sizes, v.size)
			stock += v.stock
			variants = append(variants, gin.H{
				"variantId": v.id,
				"color":     v.color,
				"size":      v.size,
				"stock":     v.stock,
			})
		}

		products = append(products, gin.H{
			"groupId":  groupID,
			"id":       first.id,
			"name":     first.name,
			"brand":    first.brand,
			"image":    first.image,
			"price":    first.price,
			"category": "sneakers",
			"color":    colors,
			"size":     sizes,
			"stock":    stock,
			"variants": variants,
		})
	}

	c.JSON(http.StatusOK, products)
}

// userStateLocked returns the caller's state, creating the cart implicitly
// on first access. Callers must hold s.mu.
func (s *Server) userStateLocked(email string) *userState {
	st, ok := s.state[email]
	if !ok {
		s.nextCartID++
		st = &userState{cartID: s.nextCartID}
		s.state[email] = st
	}
	return st
}

func (s *Server) variantLocked(id int64) (variant, bool) {
	for _, v := range s.variants {
		if v.id == id {
			return v, true
		}
	}
	return variant{}, false
}

func (s *Server) cartJSONLocked(st *userState) gin.H {
	items := make([]gin.H, 0, len(st.items))
	totalItems := 0
	totalPrice := 0.0
	for _, line := range st.items {
		v, _ := s.variantLocked(line.productID)
		lineTotal := v.price * float64(line.quantity)
		totalItems += line.quantity
		totalPrice += lineTotal
		items = append(items, gin.H{
			"itemId":    line.itemID,
			"productId": line.productID,
			"quantity":  line.quantity,
			"price":     v.price,
			"total":     lineTotal,
			"name":      v.name,
			"brand":     v.brand,
			"image":     v.image,
			"color":     v.color,
			"size":      v.size,
		})
	}

	return gin.H{
		"id":         st.cartID,
		"items":      items,
		"totalItems": totalItems,
		"totalPrice": totalPrice,
	}
}

func (s *Server) handleGetCart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.userStateLocked(c.GetString("email"))
	c.JSON(http.StatusOK, s.cartJSONLocked(st))
}

func (s *Server) handleAddCartItem(c *gin.Context) {
	var req struct {
		ProductID int64 `json:"productId" binding:"required"`
		Quantity  int   `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variantLocked(req.ProductID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	st := s.userStateLocked(c.GetString("email"))
	inCart := 0
	for _, line := range st.items {
		if line.productID == req.ProductID {
			inCart += line.quantity
		}
	}
	if inCart+req.Quantity > v.stock {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Out of stock"})
		return
	}

	s.nextItemID++
	st.items = append(st.items, cartLine{
		itemID:    s.nextItemID,
		productID: req.ProductID,
		quantity:  req.Quantity,
	})

	c.Status(http.StatusCreated)
}

func (s *Server) handleUpdateCartItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.userStateLocked(c.GetString("email"))
	for i := range st.items {
		if st.items[i].itemID != itemID {
			continue
		}
		v, _ := s.variantLocked(st.items[i].productID)
		if req.Quantity > v.stock {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Out of stock"})
			return
		}
		st.items[i].quantity = req.Quantity
		c.Status(http.StatusOK)
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
}

func (s *Server) handleRemoveCartItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.userStateLocked(c.GetString("email"))
	for i, line := range st.items {
		if line.itemID != itemID {
			continue
		}
		st.items = append(st.items[:i], st.items[i+1:]...)
		c.Status(http.StatusOK)
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
}

func (s *Server) handleCheckout(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.userStateLocked(c.GetString("email"))
	if len(st.items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "cart is empty"})
		return
	}

	s.nextOrderID++
	o := order{
		id:     s.nextOrderID,
		status: "pending",
	}
	for _, line := range st.items {
		v, _ := s.variantLocked(line.productID)
		// Product data is frozen at purchase time.
		o.items = append(o.items, orderLine{
			id:              line.itemID,
			quantity:        line.quantity,
			priceAtPurchase: v.price,
			product:         v,
		})
		o.totalPrice += v.price * float64(line.quantity)

		for i := range s.variants {
			if s.variants[i].id == v.id {
				s.variants[i].stock -= line.quantity
			}
		}
	}

	st.orders = append(st.orders, o)
	st.items = nil

	c.JSON(http.StatusCreated, gin.H{"orderId": o.id})
}

func (s *Server) handleListOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.userStateLocked(c.GetString("email"))
	orders := make([]gin.H, 0, len(st.orders))
	for _, o := range st.orders {
		items := make([]gin.H, 0, len(o.items))
		for _, line := range o.items {
			items = append(items, gin.H{
				"id":                line.id,
				"quantity":          line.quantity,
				"price_at_purchase": line.priceAtPurchase,
				"product": gin.H{
					"id":    line.product.id,
					"name":  line.product.name,
					"brand": line.product.brand,
					"image": line.product.image,
					"price": line.product.price,
					"color": line.product.color,
					"size":  line.product.size,
				},
			})
		}
		orders = append(orders, gin.H{
			"id":          o.id,
			"status":      o.status,
			"total_price": o.totalPrice,
			"items":       items,
		})
	}

	c.JSON(http.StatusOK, orders)
}
