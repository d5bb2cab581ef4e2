package gpu

// KernelEntry is the name of the function a kernel program must define.
const KernelEntry = "post_prove"

// KernelSource is the program loaded into accelerator contexts. Every work item
// scores one label for one nonce group.
const KernelSource = `
#define NONCES_PER_GROUP 16
#define LABEL_SIZE 16

struct Result {
    ulong index;
    uint nonce;
} __attribute__((packed, aligned(4)));

__kernel void post_prove(__global const uchar *round_keys,
                         __global const uchar *lazy_round_keys,
                         uint start_nonce,
                         uint groups,
                         ulong base_index,
                         uchar difficulty_msb,
                         ulong difficulty_lsb,
                         __global const uchar *labels,
                         __global struct Result *out,
                         __global volatile int *out_count,
                         uint total) {
    size_t id = get_global_id(0);
    if (id >= total) {
        return;
    }
    size_t label = id / groups;
    uint group = id % groups;
    __global const uchar *in = labels + label * LABEL_SIZE;

    uchar enc[LABEL_SIZE];
    aes128_encrypt(round_keys + group * AES128_ROUND_KEYS, in, enc);

    for (uint offset = 0; offset < NONCES_PER_GROUP; offset++) {
        if (enc[offset] > difficulty_msb) {
            continue;
        }
        uint nonce = (start_nonce / NONCES_PER_GROUP + group) * NONCES_PER_GROUP + offset;
        if (enc[offset] == difficulty_msb) {
            ulong lazy[2];
            aes128_encrypt(lazy_round_keys + (nonce - start_nonce) * AES128_ROUND_KEYS, in, (uchar *)lazy);
            if ((lazy[0] & 0x00ffffffffffffffUL) >= difficulty_lsb) {
                continue;
            }
        }
        int slot = atomic_add(out_count, 1);
        out[slot].index = base_index + label;
        out[slot].nonce = nonce;
    }
}
`
