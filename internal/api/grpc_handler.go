package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
	"catalog-service/internal/store"
)

// CatalogServiceName is the fully qualified name of the internal gRPC service.
const CatalogServiceName = "catalog.v1.CatalogService"

// CatalogServiceServer is the server API for the internal catalog service.
// Records travel as google.protobuf.Struct in the same JSON shape the HTTP API uses.
type CatalogServiceServer interface {
	GetCategoryDetails(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListCategoriesInternal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RestoreCategory(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	GetProductDetails(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListProductsInternal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateStock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckProductsAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProduct(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	RestoreProduct(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	GetProductStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// GRPCHandler implements CatalogServiceServer on top of the catalog services.
type GRPCHandler struct {
	categories CategoryService
	products   ProductService
	log        *logger.Logger
}

var _ CatalogServiceServer = (*GRPCHandler)(nil)

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(cs CategoryService, ps ProductService, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		categories: cs,
		products:   ps,
		log:        log.WithComponent("grpc"),
	}
}

// Register attaches the catalog service to s.
func (s *GRPCHandler) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&catalogServiceDesc, s)
}

func unaryMethod[Req, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(CatalogServiceServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(CatalogServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + CatalogServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(Req))
			})
		},
	}
}

func newID() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) }
func newStruct() *structpb.Struct   { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty      { return new(emptypb.Empty) }

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetCategoryDetails", newID, CatalogServiceServer.GetCategoryDetails),
		unaryMethod("ListCategoriesInternal", newStruct, CatalogServiceServer.ListCategoriesInternal),
		unaryMethod("RestoreCategory", newID, CatalogServiceServer.RestoreCategory),
		unaryMethod("GetProductDetails", newID, CatalogServiceServer.GetProductDetails),
		unaryMethod("ListProductsInternal", newStruct, CatalogServiceServer.ListProductsInternal),
		unaryMethod("UpdateStock", newStruct, CatalogServiceServer.UpdateStock),
		unaryMethod("CheckProductsAvailability", newStruct, CatalogServiceServer.CheckProductsAvailability),
		unaryMethod("DeleteProduct", newID, CatalogServiceServer.DeleteProduct),
		unaryMethod("RestoreProduct", newID, CatalogServiceServer.RestoreProduct),
		unaryMethod("GetProductStats", newEmpty, CatalogServiceServer.GetProductStats),
	},
	Streams: []grpc.StreamDesc{},
}

// --- Helper: Error Mapping ---

func (s *GRPCHandler) mapServiceError(err error, resourceName string, resourceID any) error {
	if err == nil {
		return nil
	}
	var unique *store.UniqueViolationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s with ID %v not found", resourceName, resourceID)
	case errors.As(err, &unique):
		return status.Errorf(codes.AlreadyExists, "A %s with the given %s already exists", resourceName, unique.Column)
	case errors.Is(err, catalog.ErrInsufficientStock):
		return status.Errorf(codes.FailedPrecondition, "Insufficient stock for %s ID %v", resourceName, resourceID)
	case errors.Is(err, catalog.ErrNotDeleted):
		return status.Errorf(codes.FailedPrecondition, "%s ID %v is not deleted", resourceName, resourceID)
	case errors.Is(err, catalog.ErrInvalidToken):
		return status.Error(codes.PermissionDenied, "invalid confirmation token")
	case errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, query.ErrMalformedInclude),
		errors.Is(err, query.ErrUnknownField):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.log.Errorw("service call failed", "resource", resourceName, "id", resourceID, "error", err)
		return status.Errorf(codes.Internal, "Failed to process request for %s ID %v", resourceName, resourceID)
	}
}

// toStruct renders v in its JSON shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func positiveID(req *wrapperspb.Int64Value, resourceName string) (int64, error) {
	id := req.GetValue()
	if id <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "%s ID must be a positive integer", resourceName)
	}
	return id, nil
}

// intField reads a whole number from a Struct field. Missing fields yield ok == false.
func intField(s *structpb.Struct, name string) (n int64, ok bool, err error) {
	v, found := s.GetFields()[name]
	if !found {
		return 0, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, false, nil
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || num.NumberValue != float64(int64(num.NumberValue)) {
		return 0, false, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int64(num.NumberValue), true, nil
}

func pageFromStruct(req *structpb.Struct) (catalog.Page, error) {
	limit, _, err := intField(req, "limit")
	if err != nil {
		return catalog.Page{}, err
	}
	offset, _, err := intField(req, "offset")
	if err != nil {
		return catalog.Page{}, err
	}
	if limit < 0 || offset < 0 {
		return catalog.Page{}, status.Error(codes.InvalidArgument, "limit and offset must not be negative")
	}
	return catalog.Page{Limit: int(limit), Offset: int(offset)}, nil
}

// --- Category gRPC Methods Implementation ---

func (s *GRPCHandler) GetCategoryDetails(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	categoryID, err := positiveID(req, "Category")
	if err != nil {
		return nil, err
	}
	category, err := s.categories.Get(ctx, query.ByID(categoryID), catalog.ReadOptions{})
	if err != nil {
		return nil, s.mapServiceError(err, "Category", categoryID)
	}
	return toStruct(category)
}

func (s *GRPCHandler) ListCategoriesInternal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	page, err := pageFromStruct(req)
	if err != nil {
		return nil, err
	}
	filter := catalog.CategoryFilter{
		Page:           page,
		Search:         req.GetFields()["search"].GetStringValue(),
		RootsOnly:      req.GetFields()["roots_only"].GetBoolValue(),
		IncludeDeleted: req.GetFields()["include_deleted"].GetBoolValue(),
	}
	if parentID, ok, err := intField(req, "parent_id"); err != nil {
		return nil, err
	} else if ok {
		filter.ParentID = &parentID
	}

	categories, total, err := s.categories.List(ctx, filter)
	if err != nil {
		return nil, s.mapServiceError(err, "Category", "list")
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return toStruct(map[string]any{"categories": categories, "total_size": total})
}

func (s *GRPCHandler) RestoreCategory(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	categoryID, err := positiveID(req, "Category")
	if err != nil {
		return nil, err
	}
	category, err := s.categories.Restore(ctx, categoryID)
	if err != nil {
		return nil, s.mapServiceError(err, "Category", categoryID)
	}
	s.log.Infow("category restored", "id", categoryID, "slug", category.Slug)
	return toStruct(category)
}

// --- Product gRPC Methods Implementation ---

func (s *GRPCHandler) GetProductDetails(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	productID, err := positiveID(req, "Product")
	if err != nil {
		return nil, err
	}
	product, err := s.products.Get(ctx, query.ByID(productID), catalog.ReadOptions{
		Include: query.Include{"category": query.Terminal()},
	})
	if err != nil {
		return nil, s.mapServiceError(err, "Product", productID)
	}
	return toStruct(product)
}

func (s *GRPCHandler) ListProductsInternal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	page, err := pageFromStruct(req)
	if err != nil {
		return nil, err
	}
	fields := req.GetFields()
	filter := catalog.ProductFilter{
		Page:           page,
		Search:         fields["search"].GetStringValue(),
		SortBy:         fields["sort_by"].GetStringValue(),
		Descending:     fields["descending"].GetBoolValue(),
		IncludeDeleted: fields["include_deleted"].GetBoolValue(),
	}
	if categoryID, ok, err := intField(req, "category_id"); err != nil {
		return nil, err
	} else if ok {
		filter.CategoryID = &categoryID
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, s.mapServiceError(err, "Product", "list")
	}
	if products == nil {
		products = []domain.Product{}
	}
	return toStruct(map[string]any{"products": products, "total_size": total})
}

type stockItem struct {
	ProductID      int64 `json:"product_id"`
	QuantityChange int32 `json:"quantity_change"`
	Quantity       int32 `json:"required_quantity"`
}

// itemsField decodes the "items" list of a request.
func itemsField(req *structpb.Struct) ([]stockItem, error) {
	list := req.GetFields()["items"].GetListValue()
	if len(list.GetValues()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "No items provided")
	}
	raw, err := protojson.Marshal(list)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "items: %v", err)
	}
	var items []stockItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "items: %v", err)
	}
	for _, item := range items {
		if item.ProductID <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "Item has invalid Product ID: %d", item.ProductID)
		}
	}
	return items, nil
}

// UpdateStock applies each stock change in turn. Changes are not applied
// atomically; the first failure is returned after every item was attempted.
func (s *GRPCHandler) UpdateStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	items, err := itemsField(req)
	if err != nil {
		return nil, err
	}
	s.log.Infow("UpdateStock", "items", len(items), "order_id", req.GetFields()["order_id"].GetStringValue())

	updated := make([]*domain.Product, 0, len(items))
	var firstError error
	for _, item := range items {
		product, err := s.products.AdjustStock(ctx, item.ProductID, item.QuantityChange)
		if err != nil {
			s.log.Warnw("stock update failed", "product_id", item.ProductID, "error", err)
			if firstError == nil {
				firstError = s.mapServiceError(err, "Product", item.ProductID)
			}
			continue
		}
		updated = append(updated, product)
	}
	if firstError != nil {
		return nil, firstError
	}
	return toStruct(map[string]any{"updated_products": updated})
}

type availability struct {
	ProductID         int64   `json:"product_id"`
	Name              string  `json:"name,omitempty"`
	AvailableQuantity int32   `json:"available_quantity"`
	IsAvailable       bool    `json:"is_available"`
	Reason            *string `json:"reason_not_available,omitempty"`
}

func (s *GRPCHandler) CheckProductsAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	items, err := itemsField(req)
	if err != nil {
		return nil, err
	}

	statuses := make([]availability, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, status.Errorf(codes.InvalidArgument,
				"Item Product ID %d has invalid required quantity: %d", item.ProductID, item.Quantity)
		}
		entry := availability{ProductID: item.ProductID}
		product, err := s.products.Get(ctx, query.ByID(item.ProductID), catalog.ReadOptions{})
		switch {
		case errors.Is(err, store.ErrNotFound):
			entry.Reason = reason("Product not found.")
		case err != nil:
			return nil, s.mapServiceError(err, "Product", item.ProductID)
		case !product.IsActive:
			entry.Name, entry.AvailableQuantity = product.Name, product.StockQuantity
			entry.Reason = reason("Product is not active.")
		case product.StockQuantity < item.Quantity:
			entry.Name, entry.AvailableQuantity = product.Name, product.StockQuantity
			entry.Reason = reason(fmt.Sprintf("Insufficient stock (%d available).", product.StockQuantity))
		default:
			entry.Name, entry.AvailableQuantity = product.Name, product.StockQuantity
			entry.IsAvailable = true
		}
		statuses = append(statuses, entry)
	}
	return toStruct(map[string]any{"statuses": statuses})
}

func reason(s string) *string { return &s }

func (s *GRPCHandler) DeleteProduct(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	productID, err := positiveID(req, "Product")
	if err != nil {
		return nil, err
	}
	if _, err := s.products.Delete(ctx, productID); err != nil {
		return nil, s.mapServiceError(err, "Product", productID)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCHandler) RestoreProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	productID, err := positiveID(req, "Product")
	if err != nil {
		return nil, err
	}
	product, err := s.products.Restore(ctx, productID)
	if err != nil {
		return nil, s.mapServiceError(err, "Product", productID)
	}
	s.log.Infow("product restored", "id", productID, "slug", product.Slug)
	return toStruct(product)
}

func (s *GRPCHandler) GetProductStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats, err := s.products.Stats(ctx)
	if err != nil {
		return nil, s.mapServiceError(err, "Product", "stats")
	}
	return toStruct(stats)
}
