package session

type op string

// keys share the {esr:session} hash tag so that every script only
// touches a single slot when running against a cluster
const (
	keyPrefix = "{esr:session}:"
	keyIndex  = "{esr:session}:index"
)

const (
	opSave op = `redis.call('SET', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return 1`
	opLoad   op = `return redis.call('GET', KEYS[1])`
	opDelete op = `redis.call('SREM', KEYS[2], ARGV[1])
return redis.call('DEL', KEYS[1])`
	opList op = `local blobs = {}
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local blob = redis.call('GET', ARGV[1] .. id)
  if blob then
    table.insert(blobs, blob)
  end
end
return blobs`
)

type command interface {
	Op() op
	Keys() []string
	Args() []interface{}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

type saveRequest struct {
	ID   string
	Blob []byte
}

func (r saveRequest) Op() op {
	return opSave
}

func (r saveRequest) Keys() []string {
	return []string{sessionKey(r.ID), keyIndex}
}

func (r saveRequest) Args() []interface{} {
	return []interface{}{r.Blob, r.ID}
}

type loadRequest struct {
	ID string
}

func (r loadRequest) Op() op {
	return opLoad
}

func (r loadRequest) Keys() []string {
	return []string{sessionKey(r.ID)}
}

func (r loadRequest) Args() []interface{} {
	return nil
}

type deleteRequest struct {
	ID string
}

func (r deleteRequest) Op() op {
	return opDelete
}

func (r deleteRequest) Keys() []string {
	return []string{sessionKey(r.ID), keyIndex}
}

func (r deleteRequest) Args() []interface{} {
	return []interface{}{r.ID}
}

type listRequest struct{}

func (r listRequest) Op() op {
	return opList
}

func (r listRequest) Keys() []string {
	return []string{keyIndex}
}

func (r listRequest) Args() []interface{} {
	return []interface{}{keyPrefix}
}
