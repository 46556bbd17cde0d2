package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/rpc"
)

// GRPCManager is a Manager over the kinveysync.AppData service.
type GRPCManager struct {
	conn  *grpc.ClientConn
	creds Credentials

	mu    sync.RWMutex
	token string
}

func withAccessToken(ctx context.Context, appKey, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AppKeyMetadataKey, appKey)
	if token != "" {
		md.Set(common.AccessTokenMetadataKey, token)
	} else {
		md.Delete(common.AccessTokenMetadataKey)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (m *GRPCManager) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	return invoker(withAccessToken(ctx, m.creds.AppKey, token), method, req, reply, cc, opts...)
}

// NewGRPCManager dials target lazily. Extra dial options are appended after
// the defaults, so tests can install a bufconn dialer.
func NewGRPCManager(target string, creds Credentials, opts ...grpc.DialOption) (*GRPCManager, error) {
	m := &GRPCManager{creds: creds}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(m.accessTokenInterceptor),
	}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	m.conn = conn
	return m, nil
}

func (m *GRPCManager) SetAuthToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *GRPCManager) mapError(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return transportError(op, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %w: %s", op, ErrUnauthorized, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case codes.Unavailable, codes.Canceled:
		return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %s", op, ErrBadRequest, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w: %s", op, ErrConflict, st.Message())
	default:
		return fmt.Errorf("%s: rpc error: %w", op, err)
	}
}

func (m *GRPCManager) call(ctx context.Context, op, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := rpc.ToStruct(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := rpc.Invoke(ctx, m.conn, method, in)
	if err != nil {
		return nil, m.mapError(op, err)
	}
	return out, nil
}

func queryFields(req map[string]any, q *query.Query, paginate bool) (map[string]any, error) {
	if q == nil {
		return req, nil
	}
	if len(q.Predicates()) > 0 {
		filter, err := q.FilterJSON()
		if err != nil {
			return nil, err
		}
		req[rpc.FieldFilter] = filter
	}
	if paginate {
		if len(q.SortFields()) > 0 {
			req[rpc.FieldSort] = q.SortJSON()
		}
		req[rpc.FieldSkip] = q.Skip()
		req[rpc.FieldLimit] = q.Limit()
	}
	return req, nil
}

func entityOf(s *structpb.Struct) models.Entity {
	if s == nil {
		return nil
	}
	return models.Entity(s.AsMap())
}

func countOf(s *structpb.Struct) int {
	return int(s.GetFields()[rpc.FieldCount].GetNumberValue())
}

func (m *GRPCManager) GetByID(ctx context.Context, collection, id string) (models.Entity, error) {
	out, err := m.call(ctx, "get "+collection, rpc.MethodGetByID, map[string]any{
		rpc.FieldCollection: collection, rpc.FieldID: id,
	})
	if err != nil {
		return nil, err
	}
	return entityOf(out), nil
}

func (m *GRPCManager) Find(ctx context.Context, collection string, q *query.Query) ([]models.Entity, error) {
	req, err := queryFields(map[string]any{rpc.FieldCollection: collection}, q, true)
	if err != nil {
		return nil, err
	}
	out, err := m.call(ctx, "find "+collection, rpc.MethodFind, req)
	if err != nil {
		return nil, err
	}
	values := out.GetFields()[rpc.FieldItems].GetListValue().GetValues()
	items := make([]models.Entity, 0, len(values))
	for _, v := range values {
		items = append(items, entityOf(v.GetStructValue()))
	}
	return items, nil
}

func (m *GRPCManager) Count(ctx context.Context, collection string, q *query.Query) (int, error) {
	req, err := queryFields(map[string]any{rpc.FieldCollection: collection}, q, false)
	if err != nil {
		return 0, err
	}
	out, err := m.call(ctx, "count "+collection, rpc.MethodCount, req)
	if err != nil {
		return 0, err
	}
	return countOf(out), nil
}

func (m *GRPCManager) save(ctx context.Context, op, method, collection string, e models.Entity) (models.Entity, error) {
	out, err := m.call(ctx, op+" "+collection, method, map[string]any{
		rpc.FieldCollection: collection, rpc.FieldEntity: e,
	})
	if err != nil {
		return nil, err
	}
	return entityOf(out), nil
}

func (m *GRPCManager) Create(ctx context.Context, collection string, e models.Entity) (models.Entity, error) {
	return m.save(ctx, "create", rpc.MethodCreate, collection, e)
}

func (m *GRPCManager) Update(ctx context.Context, collection string, e models.Entity) (models.Entity, error) {
	if e.ID() == "" {
		return nil, fmt.Errorf("update %s: %w: entity has no _id", collection, ErrBadRequest)
	}
	return m.save(ctx, "update", rpc.MethodUpdate, collection, e)
}

func (m *GRPCManager) Delete(ctx context.Context, collection, id string) (int, error) {
	out, err := m.call(ctx, "delete "+collection, rpc.MethodDelete, map[string]any{
		rpc.FieldCollection: collection, rpc.FieldID: id,
	})
	if err != nil {
		return 0, err
	}
	return countOf(out), nil
}

func (m *GRPCManager) DeleteByQuery(ctx context.Context, collection string, q *query.Query) (int, error) {
	req, err := queryFields(map[string]any{rpc.FieldCollection: collection}, q, false)
	if err != nil {
		return 0, err
	}
	out, err := m.call(ctx, "delete "+collection, rpc.MethodDeleteByQuery, req)
	if err != nil {
		return 0, err
	}
	return countOf(out), nil
}

func (m *GRPCManager) Group(ctx context.Context, collection string, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	body, err := query.EncodeAggregation(a, condition)
	if err != nil {
		return nil, err
	}
	out, err := m.call(ctx, "group "+collection, rpc.MethodGroup, map[string]any{
		rpc.FieldCollection: collection,
		rpc.FieldAggregate:  json.RawMessage(body),
	})
	if err != nil {
		return nil, err
	}
	values := out.GetFields()[rpc.FieldGroups].GetListValue().GetValues()
	groups := make([]query.Group, 0, len(values))
	for _, v := range values {
		var g query.Group
		if err := rpc.FromStruct(v.GetStructValue(), &g); err != nil {
			return nil, fmt.Errorf("group %s: %w", collection, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (m *GRPCManager) authenticate(ctx context.Context, op, method, username, password string) (*models.User, error) {
	out, err := m.call(ctx, op, method, map[string]any{
		rpc.FieldUsername: username, rpc.FieldPassword: password,
	})
	if err != nil {
		return nil, err
	}
	return models.UserFromEntity(entityOf(out)), nil
}

func (m *GRPCManager) Login(ctx context.Context, username, password string) (*models.User, error) {
	return m.authenticate(ctx, "login", rpc.MethodLogin, username, password)
}

func (m *GRPCManager) Signup(ctx context.Context, username, password string) (*models.User, error) {
	return m.authenticate(ctx, "signup", rpc.MethodSignup, username, password)
}

func (m *GRPCManager) Ping(ctx context.Context) error {
	out, err := m.call(ctx, "ping", rpc.MethodPing, map[string]any{})
	if err != nil {
		return err
	}
	if out.GetFields()[rpc.FieldStatus].GetStringValue() != "OK" {
		return fmt.Errorf("ping: %w", ErrUnavailable)
	}
	return nil
}

func (m *GRPCManager) Close() error {
	return m.conn.Close()
}
